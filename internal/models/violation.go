package models

import (
	"time"

	"gorm.io/datatypes"
)

// Violation is an append-only record of a suspicious proctoring event.
// Rows are only removed by an explicit admin clear-violations action.
type Violation struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	StudentID     uint              `gorm:"not null;index:idx_violations_student_assignment" json:"student_id"`
	AssignmentID  uint              `gorm:"not null;index:idx_violations_student_assignment" json:"assignment_id"`
	ViolationType string            `gorm:"size:64;not null" json:"violation_type"`
	Description   string            `gorm:"type:text" json:"description"`
	Severity      string            `gorm:"size:16;not null;default:medium" json:"severity"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	DetectedAt    time.Time         `gorm:"autoCreateTime" json:"detected_at"`
}

const (
	// SeverityLow tags informational violations.
	SeverityLow = "low"
	// SeverityMedium is the default severity.
	SeverityMedium = "medium"
	// SeverityHigh tags violations that warrant immediate attention.
	SeverityHigh = "high"

	// ViolationTypeManualLock is the synthetic violation recorded when an
	// admin force-locks a session with a reason.
	ViolationTypeManualLock = "manual_lock"
)
