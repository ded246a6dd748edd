package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
)

// AssignmentService exposes assignment management operations.
type AssignmentService interface {
	List(ctx context.Context, filter dto.AssignmentListFilter) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint, forStudent bool) (dto.AssignmentResponse, error)
	Create(ctx context.Context, adminID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint) error
}

// ErrAssignmentWindowInvalid indicates end time does not follow start time.
var ErrAssignmentWindowInvalid = errors.New("assignment end time must be after start time")

// ErrAssignmentHasSubmissions indicates a delete was refused because graded
// work would be destroyed with it.
var ErrAssignmentHasSubmissions = errors.New("assignment has submissions")

type assignmentService struct {
	assignments repository.AssignmentRepository
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService constructs a new assignment service.
func NewAssignmentService(assignmentRepo repository.AssignmentRepository, problemRepo repository.ProblemRepository, submissionRepo repository.SubmissionRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: assignmentRepo,
		problems:    problemRepo,
		submissions: submissionRepo,
		validator:   validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) List(ctx context.Context, filter dto.AssignmentListFilter) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{IsActive: filter.IsActive})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint, forStudent bool) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	problems, err := s.problems.ListByAssignment(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("load problems: %w", err)
	}
	assignment.Problems = problems

	response := dto.NewAssignmentResponse(assignment)
	if forStudent {
		response.Problems = dto.NewProblemResponseSlice(problems, true)
	}

	return response, nil
}

func (s *assignmentService) Create(ctx context.Context, adminID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !payload.EndTime.After(payload.StartTime) {
		return dto.AssignmentResponse{}, ErrAssignmentWindowInvalid
	}

	allowMultiple := true
	if payload.AllowMultipleSubmissions != nil {
		allowMultiple = *payload.AllowMultipleSubmissions
	}

	maxViolations := payload.MaxViolations
	if maxViolations <= 0 {
		maxViolations = models.DefaultMaxViolations
	}

	assignment := models.Assignment{
		Title:                    payload.Title,
		Description:              payload.Description,
		StartTime:                payload.StartTime,
		EndTime:                  payload.EndTime,
		IsActive:                 true,
		AllowMultipleSubmissions: allowMultiple,
		MaxViolations:            maxViolations,
		CreatedBy:                adminID,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("create assignment: %w", err)
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("admin_id", adminID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	if payload.Title != nil {
		assignment.Title = *payload.Title
	}
	if payload.Description != nil {
		assignment.Description = *payload.Description
	}
	if payload.StartTime != nil {
		assignment.StartTime = *payload.StartTime
	}
	if payload.EndTime != nil {
		assignment.EndTime = *payload.EndTime
	}
	if payload.IsActive != nil {
		assignment.IsActive = *payload.IsActive
	}
	if payload.AllowMultipleSubmissions != nil {
		assignment.AllowMultipleSubmissions = *payload.AllowMultipleSubmissions
	}
	if payload.MaxViolations != nil {
		assignment.MaxViolations = *payload.MaxViolations
	}

	if !assignment.EndTime.After(assignment.StartTime) {
		return dto.AssignmentResponse{}, ErrAssignmentWindowInvalid
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, fmt.Errorf("update assignment: %w", err)
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint) error {
	if _, err := s.assignments.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("load assignment: %w", err)
	}

	existing, err := s.submissions.ListByAssignment(ctx, id, repository.SubmissionFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("check submissions: %w", err)
	}
	if len(existing) > 0 {
		return ErrAssignmentHasSubmissions
	}

	// Problems return to the bank rather than being destroyed with the
	// assignment.
	if err := s.problems.DetachFromAssignment(ctx, id); err != nil {
		return fmt.Errorf("detach problems: %w", err)
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")

	return nil
}
