package dto

import (
	"time"

	"github.com/codecourt/codecourt-api/internal/models"
)

// SubmissionCreateRequest carries a solution for grading.
type SubmissionCreateRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required,gt=0"`
	ProblemID    uint   `json:"problem_id" validate:"required,gt=0"`
	Code         string `json:"code" validate:"required,min=1,max=65536"`
	Language     string `json:"language" validate:"required,oneof=javascript python java cpp c csharp ruby go rust"`
}

// SubmissionListFilter describes query string filters for listing submissions.
type SubmissionListFilter struct {
	AssignmentID *uint  `query:"assignment_id"`
	ProblemID    *uint  `query:"problem_id"`
	Status       string `query:"status" validate:"omitempty,oneof=pending accepted wrong_answer runtime_error compilation_error time_limit_exceeded memory_limit_exceeded"`
	Limit        int    `query:"limit" validate:"omitempty,gte=1,lte=200"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID              uint        `json:"id"`
	StudentID       uint        `json:"student_id"`
	AssignmentID    uint        `json:"assignment_id"`
	ProblemID       uint        `json:"problem_id"`
	Language        string      `json:"language"`
	Status          string      `json:"status"`
	Score           int         `json:"score"`
	ExecutionTimeMs float64     `json:"execution_time"`
	MemoryUsedKB    int         `json:"memory_used"`
	TestCasesPassed int         `json:"test_cases_passed"`
	TotalTestCases  int         `json:"total_test_cases"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	SubmittedAt     time.Time   `json:"submitted_at"`
	Code            string      `json:"code,omitempty"`
	Student         StudentLite `json:"student,omitempty"`
	Problem         ProblemLite `json:"problem,omitempty"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID         uint   `json:"id"`
	RollNumber string `json:"roll_number"`
	Name       string `json:"name"`
}

// ProblemLite summarizes a problem in submission responses.
type ProblemLite struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
}

// NewSubmissionResponse converts a Submission model into a DTO. Code is only
// embedded when includeCode is true; listings stay lean.
func NewSubmissionResponse(model models.Submission, includeCode bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		AssignmentID:    model.AssignmentID,
		ProblemID:       model.ProblemID,
		Language:        model.Language,
		Status:          model.Status,
		Score:           model.Score,
		ExecutionTimeMs: model.ExecutionTimeMs,
		MemoryUsedKB:    model.MemoryUsedKB,
		TestCasesPassed: model.TestCasesPassed,
		TotalTestCases:  model.TotalTestCases,
		ErrorMessage:    model.ErrorMessage,
		SubmittedAt:     model.SubmittedAt,
	}

	if includeCode {
		response.Code = model.Code
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:         model.Student.ID,
			RollNumber: model.Student.RollNumber,
			Name:       model.Student.Name,
		}
	}

	if model.Problem.ID != 0 {
		response.Problem = ProblemLite{
			ID:     model.Problem.ID,
			Title:  model.Problem.Title,
			Points: model.Problem.Points,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission, false))
	}
	return responses
}
