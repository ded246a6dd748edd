package dto

import (
	"time"

	"github.com/codecourt/codecourt-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating assignments.
type AssignmentCreateRequest struct {
	Title                    string    `json:"title" validate:"required,min=3,max=255"`
	Description              string    `json:"description" validate:"omitempty,max=10000"`
	StartTime                time.Time `json:"start_time" validate:"required"`
	EndTime                  time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	AllowMultipleSubmissions *bool     `json:"allow_multiple_submissions"`
	MaxViolations            int       `json:"max_violations" validate:"omitempty,gte=1,lte=100"`
}

// AssignmentUpdateRequest describes the payload for updating assignments.
type AssignmentUpdateRequest struct {
	Title                    *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description              *string    `json:"description" validate:"omitempty,max=10000"`
	StartTime                *time.Time `json:"start_time"`
	EndTime                  *time.Time `json:"end_time"`
	IsActive                 *bool      `json:"is_active"`
	AllowMultipleSubmissions *bool      `json:"allow_multiple_submissions"`
	MaxViolations            *int       `json:"max_violations" validate:"omitempty,gte=1,lte=100"`
}

// AssignmentListFilter describes query string filters for listing assignments.
type AssignmentListFilter struct {
	IsActive *bool `query:"is_active"`
}

// AssignmentResponse serializes an assignment.
type AssignmentResponse struct {
	ID                       uint              `json:"id"`
	Title                    string            `json:"title"`
	Description              string            `json:"description"`
	StartTime                time.Time         `json:"start_time"`
	EndTime                  time.Time         `json:"end_time"`
	IsActive                 bool              `json:"is_active"`
	AllowMultipleSubmissions bool              `json:"allow_multiple_submissions"`
	MaxViolations            int               `json:"max_violations"`
	CreatedAt                time.Time         `json:"created_at"`
	Problems                 []ProblemResponse `json:"problems,omitempty"`
}

// NewAssignmentResponse converts an Assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	response := AssignmentResponse{
		ID:                       model.ID,
		Title:                    model.Title,
		Description:              model.Description,
		StartTime:                model.StartTime,
		EndTime:                  model.EndTime,
		IsActive:                 model.IsActive,
		AllowMultipleSubmissions: model.AllowMultipleSubmissions,
		MaxViolations:            model.MaxViolations,
		CreatedAt:                model.CreatedAt,
	}

	if len(model.Problems) > 0 {
		response.Problems = NewProblemResponseSlice(model.Problems, false)
	}

	return response
}

// NewAssignmentResponseSlice converts assignment models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}
	return responses
}
