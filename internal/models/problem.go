package models

import "time"

// Problem is a single gradable task. It may live in the problem bank
// (AssignmentID nil) or belong to exactly one assignment.
type Problem struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AssignmentID  *uint      `gorm:"index" json:"assignment_id"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Difficulty    string     `gorm:"size:16;not null;default:medium" json:"difficulty"`
	Points        int        `gorm:"not null;default:10" json:"points"`
	TimeLimitMs   int        `gorm:"not null;default:2000" json:"time_limit"`
	MemoryLimitKB int        `gorm:"not null;default:256000" json:"memory_limit"`
	OrderIndex    int        `gorm:"not null;default:0" json:"order_index"`
	Constraints   string     `gorm:"type:text" json:"constraints"`
	InputFormat   string     `gorm:"type:text" json:"input_format"`
	OutputFormat  string     `gorm:"type:text" json:"output_format"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	TestCases     []TestCase `json:"test_cases,omitempty"`
}

const (
	// DifficultyEasy marks introductory problems.
	DifficultyEasy = "easy"
	// DifficultyMedium is the default difficulty.
	DifficultyMedium = "medium"
	// DifficultyHard marks the most demanding problems.
	DifficultyHard = "hard"
)
