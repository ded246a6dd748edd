package models

import "time"

// AssignmentSession is the proctoring record for one student's attempt at one
// assignment. There is at most one row per (student, assignment) pair.
//
// Lifecycle: created on first start, then either ended normally (EndedAt set,
// IsSubmitted true) or locked (IsLocked true). A locked session only becomes
// usable again through an explicit admin unlock.
type AssignmentSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	StudentID      uint       `gorm:"not null;uniqueIndex:idx_sessions_student_assignment" json:"student_id"`
	AssignmentID   uint       `gorm:"not null;uniqueIndex:idx_sessions_student_assignment" json:"assignment_id"`
	StartedAt      time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	IsLocked       bool       `gorm:"not null;default:false" json:"is_locked"`
	IsSubmitted    bool       `gorm:"not null;default:false" json:"is_submitted"`
	ViolationCount int        `gorm:"not null;default:0" json:"violation_count"`
	IPAddress      string     `gorm:"size:64" json:"ip_address"`
	UserAgent      string     `gorm:"size:512" json:"user_agent"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsActive reports whether the session still accepts violations and submissions.
func (s AssignmentSession) IsActive() bool {
	return !s.IsLocked && !s.IsSubmitted && s.EndedAt == nil
}
