package models

import "time"

// Assignment represents a timed, proctored problem set.
type Assignment struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Title                    string    `gorm:"size:255;not null" json:"title"`
	Description              string    `gorm:"type:text" json:"description"`
	StartTime                time.Time `gorm:"not null" json:"start_time"`
	EndTime                  time.Time `gorm:"not null" json:"end_time"`
	IsActive                 bool      `gorm:"not null;default:true" json:"is_active"`
	AllowMultipleSubmissions bool      `gorm:"not null;default:true" json:"allow_multiple_submissions"`
	MaxViolations            int       `gorm:"not null;default:5" json:"max_violations"`
	CreatedBy                uint      `json:"created_by"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
	Problems                 []Problem `json:"problems,omitempty"`
}

// DefaultMaxViolations applies when an assignment does not set its own threshold.
const DefaultMaxViolations = 5

// ViolationThreshold returns the number of violations that locks a session.
func (a Assignment) ViolationThreshold() int {
	if a.MaxViolations <= 0 {
		return DefaultMaxViolations
	}
	return a.MaxViolations
}

// HasStarted reports whether the assignment window is open at the given time.
func (a Assignment) HasStarted(reference time.Time) bool {
	return !reference.Before(a.StartTime)
}

// HasEnded reports whether the assignment window has closed at the given time.
func (a Assignment) HasEnded(reference time.Time) bool {
	return reference.After(a.EndTime)
}
