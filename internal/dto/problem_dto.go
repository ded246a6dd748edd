package dto

import (
	"time"

	"github.com/codecourt/codecourt-api/internal/models"
)

// ProblemCreateRequest describes the payload for creating problems.
type ProblemCreateRequest struct {
	AssignmentID  *uint                   `json:"assignment_id" validate:"omitempty,gt=0"`
	Title         string                  `json:"title" validate:"required,min=3,max=255"`
	Description   string                  `json:"description" validate:"required,max=50000"`
	Difficulty    string                  `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Points        int                     `json:"points" validate:"omitempty,gte=1,lte=1000"`
	TimeLimitMs   int                     `json:"time_limit" validate:"omitempty,gte=100,lte=30000"`
	MemoryLimitKB int                     `json:"memory_limit" validate:"omitempty,gte=1024,lte=1048576"`
	OrderIndex    int                     `json:"order_index" validate:"omitempty,gte=0"`
	Constraints   string                  `json:"constraints" validate:"omitempty,max=10000"`
	InputFormat   string                  `json:"input_format" validate:"omitempty,max=10000"`
	OutputFormat  string                  `json:"output_format" validate:"omitempty,max=10000"`
	TestCases     []TestCaseCreateRequest `json:"test_cases" validate:"omitempty,dive"`
}

// ProblemUpdateRequest describes the payload for updating problems.
type ProblemUpdateRequest struct {
	AssignmentID  *uint   `json:"assignment_id" validate:"omitempty,gt=0"`
	Title         *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string `json:"description" validate:"omitempty,max=50000"`
	Difficulty    *string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Points        *int    `json:"points" validate:"omitempty,gte=1,lte=1000"`
	TimeLimitMs   *int    `json:"time_limit" validate:"omitempty,gte=100,lte=30000"`
	MemoryLimitKB *int    `json:"memory_limit" validate:"omitempty,gte=1024,lte=1048576"`
	OrderIndex    *int    `json:"order_index" validate:"omitempty,gte=0"`
	Constraints   *string `json:"constraints" validate:"omitempty,max=10000"`
	InputFormat   *string `json:"input_format" validate:"omitempty,max=10000"`
	OutputFormat  *string `json:"output_format" validate:"omitempty,max=10000"`
}

// TestCaseCreateRequest describes one test case in a create payload.
type TestCaseCreateRequest struct {
	Input          string `json:"input" validate:"omitempty,max=65536"`
	ExpectedOutput string `json:"expected_output" validate:"required,max=65536"`
	IsSample       bool   `json:"is_sample"`
	IsHidden       *bool  `json:"is_hidden"`
	Points         int    `json:"points" validate:"omitempty,gte=0,lte=1000"`
}

// ProblemGradabilityResponse reports whether a problem is ready for grading.
type ProblemGradabilityResponse struct {
	ProblemID   uint     `json:"problem_id"`
	TotalCases  int      `json:"total_cases"`
	SampleCases int      `json:"sample_cases"`
	HiddenCases int      `json:"hidden_cases"`
	Gradable    bool     `json:"gradable"`
	Issues      []string `json:"issues,omitempty"`
}

// ProblemResponse serializes a problem.
type ProblemResponse struct {
	ID            uint               `json:"id"`
	AssignmentID  *uint              `json:"assignment_id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Difficulty    string             `json:"difficulty"`
	Points        int                `json:"points"`
	TimeLimitMs   int                `json:"time_limit"`
	MemoryLimitKB int                `json:"memory_limit"`
	OrderIndex    int                `json:"order_index"`
	Constraints   string             `json:"constraints,omitempty"`
	InputFormat   string             `json:"input_format,omitempty"`
	OutputFormat  string             `json:"output_format,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	TestCases     []TestCaseResponse `json:"test_cases,omitempty"`
}

// TestCaseResponse serializes a test case. Hidden case payloads are redacted
// for students.
type TestCaseResponse struct {
	ID             uint   `json:"id"`
	ProblemID      uint   `json:"problem_id"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	IsSample       bool   `json:"is_sample"`
	IsHidden       bool   `json:"is_hidden"`
	Points         int    `json:"points"`
}

// NewProblemResponse converts a Problem model into a DTO. When forStudent is
// true the hidden test case payloads are stripped.
func NewProblemResponse(model models.Problem, forStudent bool) ProblemResponse {
	response := ProblemResponse{
		ID:            model.ID,
		AssignmentID:  model.AssignmentID,
		Title:         model.Title,
		Description:   model.Description,
		Difficulty:    model.Difficulty,
		Points:        model.Points,
		TimeLimitMs:   model.TimeLimitMs,
		MemoryLimitKB: model.MemoryLimitKB,
		OrderIndex:    model.OrderIndex,
		Constraints:   model.Constraints,
		InputFormat:   model.InputFormat,
		OutputFormat:  model.OutputFormat,
		CreatedAt:     model.CreatedAt,
	}

	if len(model.TestCases) > 0 {
		response.TestCases = NewTestCaseResponseSlice(model.TestCases, forStudent)
	}

	return response
}

// NewProblemResponseSlice converts problem models into DTOs.
func NewProblemResponseSlice(problems []models.Problem, forStudent bool) []ProblemResponse {
	responses := make([]ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		responses = append(responses, NewProblemResponse(problem, forStudent))
	}
	return responses
}

// NewTestCaseResponse converts a TestCase model into a DTO.
func NewTestCaseResponse(model models.TestCase, forStudent bool) TestCaseResponse {
	response := TestCaseResponse{
		ID:        model.ID,
		ProblemID: model.ProblemID,
		IsSample:  model.IsSample,
		IsHidden:  model.IsHidden,
		Points:    model.Points,
	}

	if !forStudent || !model.IsHidden {
		response.Input = model.Input
		response.ExpectedOutput = model.ExpectedOutput
	}

	return response
}

// NewTestCaseResponseSlice converts test case models into DTOs.
func NewTestCaseResponseSlice(testCases []models.TestCase, forStudent bool) []TestCaseResponse {
	responses := make([]TestCaseResponse, 0, len(testCases))
	for _, testCase := range testCases {
		responses = append(responses, NewTestCaseResponse(testCase, forStudent))
	}
	return responses
}
