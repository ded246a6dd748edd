package models

import "time"

// TestCase holds one input/expected-output pair for a problem. Sample cases
// are shown to students; hidden cases are used only for grading.
type TestCase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProblemID      uint      `gorm:"not null;index" json:"problem_id"`
	Input          string    `gorm:"type:text" json:"input"`
	ExpectedOutput string    `gorm:"type:text" json:"expected_output"`
	IsSample       bool      `gorm:"not null;default:false" json:"is_sample"`
	IsHidden       bool      `gorm:"not null;default:true" json:"is_hidden"`
	Points         int       `gorm:"not null;default:10" json:"points"`
	CreatedAt      time.Time `json:"created_at"`
}
