package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/observability"
	"github.com/codecourt/codecourt-api/internal/repository"
	"github.com/codecourt/codecourt-api/pkg/judge"
)

// GradingService accepts submissions and grades them against test cases.
type GradingService interface {
	Submit(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error)
	ListByStudent(ctx context.Context, studentID uint, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error)
	ListByAssignment(ctx context.Context, assignmentID uint, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error)
	Rerun(ctx context.Context, id uint) (dto.SubmissionResponse, error)
}

// ErrProblemNotFound indicates the problem cannot be located.
var ErrProblemNotFound = errors.New("problem not found")

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller may not view the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrProblemNotInAssignment indicates the problem belongs to another assignment.
var ErrProblemNotInAssignment = errors.New("problem does not belong to assignment")

// ErrAlreadySolved indicates resubmission of an accepted problem where the
// assignment forbids it.
var ErrAlreadySolved = errors.New("problem already solved")

type gradingService struct {
	submissions repository.SubmissionRepository
	sessions    repository.SessionRepository
	assignments repository.AssignmentRepository
	problems    repository.ProblemRepository
	testCases   repository.TestCaseRepository
	judge       judge.Client
	feed        ProctorFeedPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time

	// wg tracks in-flight background grading passes so shutdown and tests
	// can wait for them.
	wg sync.WaitGroup
}

// NewGradingService constructs a new grading service.
func NewGradingService(submissionRepo repository.SubmissionRepository, sessionRepo repository.SessionRepository, assignmentRepo repository.AssignmentRepository, problemRepo repository.ProblemRepository, testCaseRepo repository.TestCaseRepository, judgeClient judge.Client, feed ProctorFeedPublisher, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissionRepo,
		sessions:    sessionRepo,
		assignments: assignmentRepo,
		problems:    problemRepo,
		testCases:   testCaseRepo,
		judge:       judgeClient,
		feed:        feed,
		validator:   validate,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/codecourt/codecourt-api/internal/service/grading"),
		now:         time.Now,
	}
}

func (s *gradingService) Submit(ctx context.Context, studentID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSessionNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load session: %w", err)
	}
	if session.IsLocked {
		return dto.SubmissionResponse{}, ErrSessionLocked
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load assignment: %w", err)
	}
	if assignment.HasEnded(s.now()) {
		return dto.SubmissionResponse{}, ErrAssignmentEnded
	}

	problem, err := s.problems.GetByID(ctx, payload.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrProblemNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load problem: %w", err)
	}
	if problem.AssignmentID == nil || *problem.AssignmentID != payload.AssignmentID {
		return dto.SubmissionResponse{}, ErrProblemNotInAssignment
	}

	if !assignment.AllowMultipleSubmissions {
		solved, err := s.submissions.HasAcceptedSubmission(ctx, studentID, payload.ProblemID, payload.AssignmentID)
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("check accepted submissions: %w", err)
		}
		if solved {
			return dto.SubmissionResponse{}, ErrAlreadySolved
		}
	}

	submission := models.Submission{
		StudentID:    studentID,
		AssignmentID: payload.AssignmentID,
		ProblemID:    payload.ProblemID,
		Code:         payload.Code,
		Language:     payload.Language,
		Status:       models.SubmissionStatusPending,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("create submission: %w", err)
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", studentID).
		Uint("problem_id", payload.ProblemID).
		Str("language", payload.Language).
		Msg("submission queued for grading")

	s.gradeInBackground(ctx, submission.ID, problem)

	return dto.NewSubmissionResponse(submission, false), nil
}

func (s *gradingService) Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load submission: %w", err)
	}

	if role != models.RoleAdmin && submission.StudentID != viewerID {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *gradingService) ListByStudent(ctx context.Context, studentID uint, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID, repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
		ProblemID:    filter.ProblemID,
		Status:       filter.Status,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *gradingService) ListByAssignment(ctx context.Context, assignmentID uint, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID, repository.SubmissionFilter{
		ProblemID: filter.ProblemID,
		Status:    filter.Status,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *gradingService) Rerun(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load submission: %w", err)
	}

	problem, err := s.problems.GetByID(ctx, submission.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrProblemNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("load problem: %w", err)
	}

	submission.Status = models.SubmissionStatusPending
	submission.Score = 0
	submission.ExecutionTimeMs = 0
	submission.MemoryUsedKB = 0
	submission.TestCasesPassed = 0
	submission.TotalTestCases = 0
	submission.ErrorMessage = ""
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("reset submission: %w", err)
	}

	s.logger.Info().Uint("submission_id", submission.ID).Msg("submission rerun requested")

	s.gradeInBackground(ctx, submission.ID, problem)

	return dto.NewSubmissionResponse(submission, false), nil
}

// gradeInBackground runs a grading pass detached from the request context.
// Whatever happens, the submission always leaves pending: any failure of the
// pass itself is recorded as a runtime_error verdict.
func (s *gradingService) gradeInBackground(ctx context.Context, submissionID uint, problem models.Problem) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grade(detached, submissionID, problem); err != nil {
			s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("grading pass failed")
			s.failSubmission(detached, submissionID, err)
		}
	}()
}

func (s *gradingService) grade(ctx context.Context, submissionID uint, problem models.Problem) error {
	start := s.now()
	defer func() {
		observability.GradingDuration().Observe(time.Since(start).Seconds())
	}()

	spanCtx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int("submission.id", int(submissionID)),
		attribute.Int("problem.id", int(problem.ID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(spanCtx, submissionID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load submission: %w", err)
	}

	testCases, err := s.testCases.ListByProblem(spanCtx, problem.ID, true)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load test cases: %w", err)
	}

	if len(testCases) == 0 {
		submission.Status = models.SubmissionStatusRuntimeError
		submission.ErrorMessage = "No test cases available for this problem"
		return s.finish(spanCtx, &submission)
	}

	submission.TotalTestCases = len(testCases)

	var (
		passed       int
		score        int
		maxTimeMs    float64
		maxMemoryKB  int
		errorMessage string
	)

	timeLimit := time.Duration(problem.TimeLimitMs) * time.Millisecond

	for _, testCase := range testCases {
		verdict, err := s.judge.RunTestCase(spanCtx, judge.RunRequest{
			Source:         submission.Code,
			Language:       submission.Language,
			Stdin:          testCase.Input,
			ExpectedOutput: testCase.ExpectedOutput,
			TimeLimit:      timeLimit,
			MemoryLimitKB:  problem.MemoryLimitKB,
		})
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("run test case %d: %w", testCase.ID, err)
		}

		if verdict.ExecutionTimeMs > maxTimeMs {
			maxTimeMs = verdict.ExecutionTimeMs
		}
		if verdict.MemoryKB > maxMemoryKB {
			maxMemoryKB = verdict.MemoryKB
		}

		if verdict.Passed {
			passed++
			score += testCase.Points
			continue
		}

		if errorMessage == "" && verdict.Error != "" {
			errorMessage = verdict.Error
		}

		// Only resource-limit verdicts end the pass immediately; a wrong
		// answer, runtime or compile failure on one case still lets the
		// remaining cases run and score.
		switch verdict.Status {
		case judge.StatusTimeLimitExceeded:
			submission.Status = models.SubmissionStatusTimeLimitExceeded
		case judge.StatusMemoryLimitExceeded:
			submission.Status = models.SubmissionStatusMemoryLimitExceeded
		default:
			continue
		}

		submission.TestCasesPassed = passed
		submission.Score = score
		submission.ExecutionTimeMs = maxTimeMs
		submission.MemoryUsedKB = maxMemoryKB
		submission.ErrorMessage = errorMessage
		return s.finish(spanCtx, &submission)
	}

	if passed == len(testCases) {
		submission.Status = models.SubmissionStatusAccepted
	} else {
		submission.Status = models.SubmissionStatusWrongAnswer
	}
	submission.TestCasesPassed = passed
	submission.Score = score
	submission.ExecutionTimeMs = maxTimeMs
	submission.MemoryUsedKB = maxMemoryKB
	submission.ErrorMessage = errorMessage

	return s.finish(spanCtx, &submission)
}

func (s *gradingService) finish(ctx context.Context, submission *models.Submission) error {
	if err := s.submissions.Update(ctx, submission); err != nil {
		return fmt.Errorf("persist verdict: %w", err)
	}

	observability.SubmissionsGradedTotal().WithLabelValues(submission.Status).Inc()

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Str("status", submission.Status).
		Int("passed", submission.TestCasesPassed).
		Int("total", submission.TotalTestCases).
		Msg("submission graded")

	if s.feed != nil {
		event := ProctorEvent{
			Type:         ProctorEventSubmissionGraded,
			StudentID:    submission.StudentID,
			AssignmentID: submission.AssignmentID,
			SubmissionID: submission.ID,
			Status:       submission.Status,
		}
		if err := s.feed.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish grading event")
		}
	}

	return nil
}

// failSubmission is the catch-all: a grading pass that errored out still must
// reach a terminal status so the submission never sits pending forever.
func (s *gradingService) failSubmission(ctx context.Context, submissionID uint, cause error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to load submission for failure verdict")
		return
	}

	submission.Status = models.SubmissionStatusRuntimeError
	submission.ErrorMessage = cause.Error()
	if err := s.finish(ctx, &submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to persist failure verdict")
	}
}
