package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
)

// ProctorService drives the proctoring session lifecycle.
type ProctorService interface {
	StartSession(ctx context.Context, studentID uint, payload dto.SessionStartRequest, ipAddress, userAgent string) (dto.SessionResponse, error)
	RecordViolation(ctx context.Context, studentID uint, payload dto.ViolationReportRequest) (dto.ViolationReportResponse, error)
	EndSession(ctx context.Context, studentID uint, payload dto.SessionEndRequest) (dto.SessionResponse, error)
	GetSession(ctx context.Context, studentID, assignmentID uint) (dto.SessionResponse, error)
	ListViolations(ctx context.Context, studentID uint, assignmentID *uint) ([]dto.ViolationResponse, error)

	ListActiveSessions(ctx context.Context, assignmentID uint) ([]dto.SessionResponse, error)
	UnlockSession(ctx context.Context, studentID, assignmentID uint) (dto.SessionResponse, error)
	LockSession(ctx context.Context, studentID, assignmentID, adminID uint, payload dto.SessionLockRequest) (dto.SessionResponse, error)
	ClearViolations(ctx context.Context, studentID, assignmentID uint) (dto.ClearViolationsResponse, error)
}

// ErrAssignmentNotFound indicates the assignment cannot be located.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrSessionNotFound indicates no session exists for the pair.
var ErrSessionNotFound = errors.New("session not found")

// ErrAssignmentNotStarted indicates the assignment window has not opened.
var ErrAssignmentNotStarted = errors.New("assignment has not started yet")

// ErrAssignmentEnded indicates the assignment window has closed.
var ErrAssignmentEnded = errors.New("assignment has ended")

// ErrAssignmentInactive indicates the assignment is disabled.
var ErrAssignmentInactive = errors.New("assignment is not active")

// ErrSessionLocked indicates the session was locked by the violation policy
// or an admin.
var ErrSessionLocked = errors.New("session is locked")

// ErrSessionAlreadyEnded indicates the session was already closed.
var ErrSessionAlreadyEnded = errors.New("session has already ended")

// ErrSessionNotLocked indicates an unlock was requested on an open session.
var ErrSessionNotLocked = errors.New("session is not locked")

// ErrSessionAlreadyLocked indicates a lock was requested on a locked session.
var ErrSessionAlreadyLocked = errors.New("session is already locked")

type proctorService struct {
	sessions    repository.SessionRepository
	violations  repository.ViolationRepository
	assignments repository.AssignmentRepository
	feed        ProctorFeedPublisher
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProctorService constructs a new proctor service.
func NewProctorService(sessionRepo repository.SessionRepository, violationRepo repository.ViolationRepository, assignmentRepo repository.AssignmentRepository, feed ProctorFeedPublisher, validate *validator.Validate, logger zerolog.Logger) ProctorService {
	return &proctorService{
		sessions:    sessionRepo,
		violations:  violationRepo,
		assignments: assignmentRepo,
		feed:        feed,
		validator:   validate,
		logger:      logger.With().Str("component", "proctor_service").Logger(),
		now:         time.Now,
	}
}

func (s *proctorService) StartSession(ctx context.Context, studentID uint, payload dto.SessionStartRequest, ipAddress, userAgent string) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrAssignmentNotFound
		}
		return dto.SessionResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	now := s.now()
	if !assignment.IsActive {
		return dto.SessionResponse{}, ErrAssignmentInactive
	}
	if !assignment.HasStarted(now) {
		return dto.SessionResponse{}, ErrAssignmentNotStarted
	}
	if assignment.HasEnded(now) {
		return dto.SessionResponse{}, ErrAssignmentEnded
	}

	existing, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, payload.AssignmentID)
	if err == nil {
		if existing.IsLocked {
			return dto.SessionResponse{}, ErrSessionLocked
		}
		if existing.EndedAt != nil {
			return dto.SessionResponse{}, ErrSessionAlreadyEnded
		}

		// Reconnects resume the existing session instead of resetting it.
		response := dto.NewSessionResponse(existing)
		response.Resumed = true
		return response, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SessionResponse{}, fmt.Errorf("load session: %w", err)
	}

	session := models.AssignmentSession{
		StudentID:    studentID,
		AssignmentID: payload.AssignmentID,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}
	if err := s.sessions.Create(ctx, &session); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("assignment_id", payload.AssignmentID).
		Msg("proctoring session started")

	s.publish(ctx, ProctorEvent{
		Type:         ProctorEventSessionStarted,
		StudentID:    studentID,
		AssignmentID: payload.AssignmentID,
	})

	return dto.NewSessionResponse(session), nil
}

func (s *proctorService) RecordViolation(ctx context.Context, studentID uint, payload dto.ViolationReportRequest) (dto.ViolationReportResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ViolationReportResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ViolationReportResponse{}, ErrAssignmentNotFound
		}
		return dto.ViolationReportResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ViolationReportResponse{}, ErrSessionNotFound
		}
		return dto.ViolationReportResponse{}, fmt.Errorf("load session: %w", err)
	}
	if session.IsLocked {
		return dto.ViolationReportResponse{}, ErrSessionLocked
	}
	if session.EndedAt != nil {
		return dto.ViolationReportResponse{}, ErrSessionAlreadyEnded
	}

	severity := payload.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}

	violation := models.Violation{
		StudentID:     studentID,
		AssignmentID:  payload.AssignmentID,
		ViolationType: payload.ViolationType,
		Description:   payload.Description,
		Severity:      severity,
		Metadata:      payload.Metadata,
	}
	if err := s.violations.Create(ctx, &violation); err != nil {
		return dto.ViolationReportResponse{}, fmt.Errorf("record violation: %w", err)
	}

	// The counter increment is a single atomic UPDATE, so two simultaneous
	// reports can never both read the same pre-increment count and slip past
	// the lock threshold.
	updated, err := s.sessions.IncrementViolationCount(ctx, studentID, payload.AssignmentID)
	if err != nil {
		return dto.ViolationReportResponse{}, fmt.Errorf("increment violation count: %w", err)
	}

	threshold := assignment.ViolationThreshold()
	response := dto.ViolationReportResponse{
		Violation:      dto.NewViolationResponse(violation),
		ViolationCount: updated.ViolationCount,
	}

	if updated.ViolationCount >= threshold {
		if _, err := s.sessions.LockSession(ctx, studentID, payload.AssignmentID, s.now()); err != nil {
			return dto.ViolationReportResponse{}, fmt.Errorf("lock session: %w", err)
		}
		response.SessionLocked = true
		response.Message = fmt.Sprintf("Session locked due to %d violations. Maximum allowed: %d", updated.ViolationCount, threshold)

		s.logger.Warn().
			Uint("student_id", studentID).
			Uint("assignment_id", payload.AssignmentID).
			Int("violation_count", updated.ViolationCount).
			Msg("session locked by violation policy")

		s.publish(ctx, ProctorEvent{
			Type:           ProctorEventSessionLocked,
			StudentID:      studentID,
			AssignmentID:   payload.AssignmentID,
			ViolationCount: updated.ViolationCount,
		})
	} else {
		response.RemainingViolations = threshold - updated.ViolationCount

		s.publish(ctx, ProctorEvent{
			Type:           ProctorEventViolation,
			StudentID:      studentID,
			AssignmentID:   payload.AssignmentID,
			ViolationType:  payload.ViolationType,
			Severity:       severity,
			ViolationCount: updated.ViolationCount,
		})
	}

	return response, nil
}

func (s *proctorService) EndSession(ctx context.Context, studentID uint, payload dto.SessionEndRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, fmt.Errorf("load session: %w", err)
	}
	if session.IsLocked {
		return dto.SessionResponse{}, ErrSessionLocked
	}
	if session.EndedAt != nil {
		return dto.SessionResponse{}, ErrSessionAlreadyEnded
	}

	endedAt := s.now()
	session.EndedAt = &endedAt
	session.IsSubmitted = true
	if err := s.sessions.Update(ctx, &session); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("end session: %w", err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("assignment_id", payload.AssignmentID).
		Msg("proctoring session ended")

	s.publish(ctx, ProctorEvent{
		Type:         ProctorEventSessionEnded,
		StudentID:    studentID,
		AssignmentID: payload.AssignmentID,
	})

	return dto.NewSessionResponse(session), nil
}

func (s *proctorService) GetSession(ctx context.Context, studentID, assignmentID uint) (dto.SessionResponse, error) {
	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, fmt.Errorf("load session: %w", err)
	}

	return dto.NewSessionResponse(session), nil
}

func (s *proctorService) ListViolations(ctx context.Context, studentID uint, assignmentID *uint) ([]dto.ViolationResponse, error) {
	violations, err := s.violations.FindByStudent(ctx, studentID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}

	return dto.NewViolationResponseSlice(violations), nil
}

func (s *proctorService) ListActiveSessions(ctx context.Context, assignmentID uint) ([]dto.SessionResponse, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}

	sessions, err := s.sessions.ListActive(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	responses := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, dto.NewSessionResponse(session))
	}
	return responses, nil
}

func (s *proctorService) UnlockSession(ctx context.Context, studentID, assignmentID uint) (dto.SessionResponse, error) {
	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, fmt.Errorf("load session: %w", err)
	}
	if !session.IsLocked {
		return dto.SessionResponse{}, ErrSessionNotLocked
	}

	session.IsLocked = false
	session.EndedAt = nil
	if err := s.sessions.Update(ctx, &session); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("unlock session: %w", err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("assignment_id", assignmentID).
		Msg("session unlocked by admin")

	s.publish(ctx, ProctorEvent{
		Type:         ProctorEventSessionUnlocked,
		StudentID:    studentID,
		AssignmentID: assignmentID,
	})

	return dto.NewSessionResponse(session), nil
}

func (s *proctorService) LockSession(ctx context.Context, studentID, assignmentID, adminID uint, payload dto.SessionLockRequest) (dto.SessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionResponse{}, ErrSessionNotFound
		}
		return dto.SessionResponse{}, fmt.Errorf("load session: %w", err)
	}
	if session.IsLocked {
		return dto.SessionResponse{}, ErrSessionAlreadyLocked
	}

	reason := payload.Reason
	if reason == "" {
		reason = "Locked by administrator"
	}

	// The manual lock leaves an audit trail as a synthetic violation.
	violation := models.Violation{
		StudentID:     studentID,
		AssignmentID:  assignmentID,
		ViolationType: models.ViolationTypeManualLock,
		Description:   reason,
		Severity:      models.SeverityHigh,
		Metadata: datatypes.JSONMap{
			"admin_id": adminID,
			"reason":   reason,
		},
	}
	if err := s.violations.Create(ctx, &violation); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("record manual lock: %w", err)
	}

	locked, err := s.sessions.LockSession(ctx, studentID, assignmentID, s.now())
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("lock session: %w", err)
	}

	s.logger.Warn().
		Uint("student_id", studentID).
		Uint("assignment_id", assignmentID).
		Uint("admin_id", adminID).
		Msg("session locked by admin")

	s.publish(ctx, ProctorEvent{
		Type:           ProctorEventSessionLocked,
		StudentID:      studentID,
		AssignmentID:   assignmentID,
		ViolationCount: locked.ViolationCount,
	})

	return dto.NewSessionResponse(locked), nil
}

func (s *proctorService) ClearViolations(ctx context.Context, studentID, assignmentID uint) (dto.ClearViolationsResponse, error) {
	if _, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ClearViolationsResponse{}, ErrSessionNotFound
		}
		return dto.ClearViolationsResponse{}, fmt.Errorf("load session: %w", err)
	}

	cleared, err := s.violations.DeleteByStudentAndAssignment(ctx, studentID, assignmentID)
	if err != nil {
		return dto.ClearViolationsResponse{}, fmt.Errorf("clear violations: %w", err)
	}
	if err := s.sessions.ResetViolationCount(ctx, studentID, assignmentID); err != nil {
		return dto.ClearViolationsResponse{}, fmt.Errorf("reset violation count: %w", err)
	}

	session, err := s.sessions.FindByStudentAndAssignment(ctx, studentID, assignmentID)
	if err != nil {
		return dto.ClearViolationsResponse{}, fmt.Errorf("reload session: %w", err)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("assignment_id", assignmentID).
		Int64("cleared_count", cleared).
		Msg("violations cleared by admin")

	return dto.ClearViolationsResponse{
		ClearedCount: cleared,
		Session:      dto.NewSessionResponse(session),
	}, nil
}

func (s *proctorService) publish(ctx context.Context, event ProctorEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish proctor event")
	}
}
