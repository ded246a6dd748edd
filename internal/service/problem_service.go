package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
)

// ProblemService exposes problem and test case management operations.
type ProblemService interface {
	List(ctx context.Context) ([]dto.ProblemResponse, error)
	ListByAssignment(ctx context.Context, assignmentID uint, forStudent bool) ([]dto.ProblemResponse, error)
	Get(ctx context.Context, id uint, forStudent bool) (dto.ProblemResponse, error)
	Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemResponse, error)
	Update(ctx context.Context, id uint, payload dto.ProblemUpdateRequest) (dto.ProblemResponse, error)
	Delete(ctx context.Context, id uint) error

	AddTestCase(ctx context.Context, problemID uint, payload dto.TestCaseCreateRequest) (dto.TestCaseResponse, error)
	DeleteTestCase(ctx context.Context, problemID, testCaseID uint) error
	CheckGradability(ctx context.Context, problemID uint) (dto.ProblemGradabilityResponse, error)
}

// ErrTestCaseNotFound indicates the test case cannot be located.
var ErrTestCaseNotFound = errors.New("test case not found")

type problemService struct {
	problems    repository.ProblemRepository
	testCases   repository.TestCaseRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	sanitizer   *bluemonday.Policy
}

// NewProblemService constructs a new problem service. Problem statements may
// carry rich formatting, so they go through a UGC sanitizer instead of being
// stripped to plain text.
func NewProblemService(problemRepo repository.ProblemRepository, testCaseRepo repository.TestCaseRepository, assignmentRepo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) ProblemService {
	return &problemService{
		problems:    problemRepo,
		testCases:   testCaseRepo,
		assignments: assignmentRepo,
		validator:   validate,
		logger:      logger.With().Str("component", "problem_service").Logger(),
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

func (s *problemService) List(ctx context.Context) ([]dto.ProblemResponse, error) {
	problems, err := s.problems.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	return dto.NewProblemResponseSlice(problems, false), nil
}

func (s *problemService) ListByAssignment(ctx context.Context, assignmentID uint, forStudent bool) ([]dto.ProblemResponse, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	problems, err := s.problems.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}

	return dto.NewProblemResponseSlice(problems, forStudent), nil
}

func (s *problemService) Get(ctx context.Context, id uint, forStudent bool) (dto.ProblemResponse, error) {
	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, fmt.Errorf("load problem: %w", err)
	}

	testCases, err := s.testCases.ListByProblem(ctx, id, !forStudent)
	if err != nil {
		return dto.ProblemResponse{}, fmt.Errorf("load test cases: %w", err)
	}
	problem.TestCases = testCases

	return dto.NewProblemResponse(problem, forStudent), nil
}

func (s *problemService) Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	if payload.AssignmentID != nil {
		if _, err := s.assignments.GetByID(ctx, *payload.AssignmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ProblemResponse{}, ErrAssignmentNotFound
			}
			return dto.ProblemResponse{}, fmt.Errorf("load assignment: %w", err)
		}
	}

	problem := models.Problem{
		AssignmentID: payload.AssignmentID,
		Title:        payload.Title,
		Description:  s.sanitizer.Sanitize(payload.Description),
		Difficulty:   payload.Difficulty,
		Points:       payload.Points,
		OrderIndex:   payload.OrderIndex,
		Constraints:  payload.Constraints,
		InputFormat:  payload.InputFormat,
		OutputFormat: payload.OutputFormat,
	}
	if problem.Difficulty == "" {
		problem.Difficulty = models.DifficultyMedium
	}
	if problem.Points <= 0 {
		problem.Points = 10
	}
	if payload.TimeLimitMs > 0 {
		problem.TimeLimitMs = payload.TimeLimitMs
	} else {
		problem.TimeLimitMs = 2000
	}
	if payload.MemoryLimitKB > 0 {
		problem.MemoryLimitKB = payload.MemoryLimitKB
	} else {
		problem.MemoryLimitKB = 256000
	}

	if err := s.problems.Create(ctx, &problem); err != nil {
		return dto.ProblemResponse{}, fmt.Errorf("create problem: %w", err)
	}

	if len(payload.TestCases) > 0 {
		testCases := make([]models.TestCase, 0, len(payload.TestCases))
		for _, request := range payload.TestCases {
			testCases = append(testCases, newTestCase(problem.ID, request))
		}
		if err := s.testCases.CreateBatch(ctx, testCases); err != nil {
			return dto.ProblemResponse{}, fmt.Errorf("create test cases: %w", err)
		}
		problem.TestCases = testCases
	}

	s.logger.Info().Uint("problem_id", problem.ID).Str("title", problem.Title).Msg("problem created")

	return dto.NewProblemResponse(problem, false), nil
}

func (s *problemService) Update(ctx context.Context, id uint, payload dto.ProblemUpdateRequest) (dto.ProblemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, fmt.Errorf("load problem: %w", err)
	}

	if payload.AssignmentID != nil {
		if _, err := s.assignments.GetByID(ctx, *payload.AssignmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ProblemResponse{}, ErrAssignmentNotFound
			}
			return dto.ProblemResponse{}, fmt.Errorf("load assignment: %w", err)
		}
		problem.AssignmentID = payload.AssignmentID
	}
	if payload.Title != nil {
		problem.Title = *payload.Title
	}
	if payload.Description != nil {
		problem.Description = s.sanitizer.Sanitize(*payload.Description)
	}
	if payload.Difficulty != nil {
		problem.Difficulty = *payload.Difficulty
	}
	if payload.Points != nil {
		problem.Points = *payload.Points
	}
	if payload.TimeLimitMs != nil {
		problem.TimeLimitMs = *payload.TimeLimitMs
	}
	if payload.MemoryLimitKB != nil {
		problem.MemoryLimitKB = *payload.MemoryLimitKB
	}
	if payload.OrderIndex != nil {
		problem.OrderIndex = *payload.OrderIndex
	}
	if payload.Constraints != nil {
		problem.Constraints = *payload.Constraints
	}
	if payload.InputFormat != nil {
		problem.InputFormat = *payload.InputFormat
	}
	if payload.OutputFormat != nil {
		problem.OutputFormat = *payload.OutputFormat
	}

	if err := s.problems.Update(ctx, &problem); err != nil {
		return dto.ProblemResponse{}, fmt.Errorf("update problem: %w", err)
	}

	return dto.NewProblemResponse(problem, false), nil
}

func (s *problemService) Delete(ctx context.Context, id uint) error {
	if _, err := s.problems.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProblemNotFound
		}
		return fmt.Errorf("load problem: %w", err)
	}

	if err := s.problems.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}

	s.logger.Info().Uint("problem_id", id).Msg("problem deleted")

	return nil
}

func (s *problemService) AddTestCase(ctx context.Context, problemID uint, payload dto.TestCaseCreateRequest) (dto.TestCaseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TestCaseResponse{}, err
	}

	if _, err := s.problems.GetByID(ctx, problemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestCaseResponse{}, ErrProblemNotFound
		}
		return dto.TestCaseResponse{}, fmt.Errorf("load problem: %w", err)
	}

	testCase := newTestCase(problemID, payload)
	if err := s.testCases.Create(ctx, &testCase); err != nil {
		return dto.TestCaseResponse{}, fmt.Errorf("create test case: %w", err)
	}

	return dto.NewTestCaseResponse(testCase, false), nil
}

func (s *problemService) DeleteTestCase(ctx context.Context, problemID, testCaseID uint) error {
	testCase, err := s.testCases.GetByID(ctx, testCaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTestCaseNotFound
		}
		return fmt.Errorf("load test case: %w", err)
	}
	if testCase.ProblemID != problemID {
		return ErrTestCaseNotFound
	}

	return s.testCases.Delete(ctx, testCaseID)
}

// CheckGradability reports whether submissions against the problem can
// produce a meaningful verdict before the assignment goes live.
func (s *problemService) CheckGradability(ctx context.Context, problemID uint) (dto.ProblemGradabilityResponse, error) {
	if _, err := s.problems.GetByID(ctx, problemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemGradabilityResponse{}, ErrProblemNotFound
		}
		return dto.ProblemGradabilityResponse{}, fmt.Errorf("load problem: %w", err)
	}

	testCases, err := s.testCases.ListByProblem(ctx, problemID, true)
	if err != nil {
		return dto.ProblemGradabilityResponse{}, fmt.Errorf("load test cases: %w", err)
	}

	report := dto.ProblemGradabilityResponse{ProblemID: problemID, TotalCases: len(testCases)}
	for _, testCase := range testCases {
		if testCase.IsSample {
			report.SampleCases++
		}
		if testCase.IsHidden {
			report.HiddenCases++
		}
	}

	if report.TotalCases == 0 {
		report.Issues = append(report.Issues, "problem has no test cases")
	}
	if report.SampleCases == 0 {
		report.Issues = append(report.Issues, "problem has no sample test case")
	}
	report.Gradable = len(report.Issues) == 0

	return report, nil
}

func newTestCase(problemID uint, payload dto.TestCaseCreateRequest) models.TestCase {
	hidden := true
	if payload.IsHidden != nil {
		hidden = *payload.IsHidden
	}
	if payload.IsSample {
		hidden = false
	}

	points := payload.Points
	if points <= 0 {
		points = 10
	}

	return models.TestCase{
		ProblemID:      problemID,
		Input:          payload.Input,
		ExpectedOutput: payload.ExpectedOutput,
		IsSample:       payload.IsSample,
		IsHidden:       hidden,
		Points:         points,
	}
}
