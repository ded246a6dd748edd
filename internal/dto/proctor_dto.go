package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/codecourt/codecourt-api/internal/models"
)

// SessionStartRequest opens (or resumes) a proctoring session.
type SessionStartRequest struct {
	AssignmentID uint `json:"assignment_id" validate:"required,gt=0"`
}

// ViolationReportRequest records one suspicious proctoring event.
type ViolationReportRequest struct {
	AssignmentID  uint              `json:"assignment_id" validate:"required,gt=0"`
	ViolationType string            `json:"violation_type" validate:"required,min=2,max=64"`
	Description   string            `json:"description" validate:"omitempty,max=1024"`
	Severity      string            `json:"severity" validate:"omitempty,oneof=low medium high"`
	Metadata      datatypes.JSONMap `json:"metadata"`
}

// SessionEndRequest closes a session normally.
type SessionEndRequest struct {
	AssignmentID uint `json:"assignment_id" validate:"required,gt=0"`
}

// SessionLockRequest is the admin force-lock payload.
type SessionLockRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

// SessionResponse serializes a proctoring session.
type SessionResponse struct {
	ID             uint       `json:"id"`
	StudentID      uint       `json:"student_id"`
	AssignmentID   uint       `json:"assignment_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at"`
	IsLocked       bool       `json:"is_locked"`
	IsSubmitted    bool       `json:"is_submitted"`
	ViolationCount int        `json:"violation_count"`
	Resumed        bool       `json:"resumed,omitempty"`
}

// ViolationReportResponse tells the client what the report did to the session.
type ViolationReportResponse struct {
	Violation           ViolationResponse `json:"violation"`
	ViolationCount      int               `json:"violation_count"`
	SessionLocked       bool              `json:"session_locked"`
	RemainingViolations int               `json:"remaining_violations,omitempty"`
	Message             string            `json:"message,omitempty"`
}

// ViolationResponse serializes one violation record.
type ViolationResponse struct {
	ID            uint              `json:"id"`
	StudentID     uint              `json:"student_id"`
	AssignmentID  uint              `json:"assignment_id"`
	ViolationType string            `json:"violation_type"`
	Description   string            `json:"description"`
	Severity      string            `json:"severity"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	DetectedAt    time.Time         `json:"detected_at"`
}

// ClearViolationsResponse reports how many records an admin clear removed.
type ClearViolationsResponse struct {
	ClearedCount int64           `json:"cleared_count"`
	Session      SessionResponse `json:"session"`
}

// NewSessionResponse converts an AssignmentSession model into a DTO.
func NewSessionResponse(model models.AssignmentSession) SessionResponse {
	return SessionResponse{
		ID:             model.ID,
		StudentID:      model.StudentID,
		AssignmentID:   model.AssignmentID,
		StartedAt:      model.StartedAt,
		EndedAt:        model.EndedAt,
		IsLocked:       model.IsLocked,
		IsSubmitted:    model.IsSubmitted,
		ViolationCount: model.ViolationCount,
	}
}

// NewViolationResponse converts a Violation model into a DTO.
func NewViolationResponse(model models.Violation) ViolationResponse {
	return ViolationResponse{
		ID:            model.ID,
		StudentID:     model.StudentID,
		AssignmentID:  model.AssignmentID,
		ViolationType: model.ViolationType,
		Description:   model.Description,
		Severity:      model.Severity,
		Metadata:      model.Metadata,
		DetectedAt:    model.DetectedAt,
	}
}

// NewViolationResponseSlice converts violation models into DTOs.
func NewViolationResponseSlice(violations []models.Violation) []ViolationResponse {
	responses := make([]ViolationResponse, 0, len(violations))
	for _, violation := range violations {
		responses = append(responses, NewViolationResponse(violation))
	}
	return responses
}
