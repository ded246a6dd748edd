package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codecourt/codecourt-api/internal/models"
)

// SessionStats aggregates proctoring sessions for one assignment.
type SessionStats struct {
	TotalSessions     int64   `json:"total_sessions"`
	LockedSessions    int64   `json:"locked_sessions"`
	SubmittedSessions int64   `json:"submitted_sessions"`
	AvgViolations     float64 `json:"avg_violations"`
}

// SessionRepository defines data operations for proctoring sessions.
type SessionRepository interface {
	FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.AssignmentSession, error)
	Create(ctx context.Context, session *models.AssignmentSession) error
	Update(ctx context.Context, session *models.AssignmentSession) error
	// IncrementViolationCount bumps the counter in a single UPDATE and
	// returns the row as written. Concurrent violation reports serialise on
	// this statement, so no two callers can observe the same count.
	IncrementViolationCount(ctx context.Context, studentID, assignmentID uint) (models.AssignmentSession, error)
	// LockSession marks the session locked and ended in one statement.
	LockSession(ctx context.Context, studentID, assignmentID uint, lockedAt time.Time) (models.AssignmentSession, error)
	ResetViolationCount(ctx context.Context, studentID, assignmentID uint) error
	ListActive(ctx context.Context, assignmentID uint) ([]models.AssignmentSession, error)
	Stats(ctx context.Context, assignmentID uint) (SessionStats, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.AssignmentSession, error) {
	var session models.AssignmentSession
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		First(&session).Error
	if err != nil {
		return models.AssignmentSession{}, err
	}

	return session, nil
}

func (r *sessionRepository) Create(ctx context.Context, session *models.AssignmentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) Update(ctx context.Context, session *models.AssignmentSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *sessionRepository) IncrementViolationCount(ctx context.Context, studentID, assignmentID uint) (models.AssignmentSession, error) {
	var session models.AssignmentSession
	result := r.db.WithContext(ctx).
		Model(&session).
		Clauses(clause.Returning{}).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		UpdateColumn("violation_count", gorm.Expr("violation_count + ?", 1))
	if result.Error != nil {
		return models.AssignmentSession{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.AssignmentSession{}, gorm.ErrRecordNotFound
	}

	return session, nil
}

func (r *sessionRepository) LockSession(ctx context.Context, studentID, assignmentID uint, lockedAt time.Time) (models.AssignmentSession, error) {
	var session models.AssignmentSession
	result := r.db.WithContext(ctx).
		Model(&session).
		Clauses(clause.Returning{}).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		UpdateColumns(map[string]interface{}{
			"is_locked": true,
			"ended_at":  lockedAt,
		})
	if result.Error != nil {
		return models.AssignmentSession{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.AssignmentSession{}, gorm.ErrRecordNotFound
	}

	return session, nil
}

func (r *sessionRepository) ResetViolationCount(ctx context.Context, studentID, assignmentID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.AssignmentSession{}).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		UpdateColumn("violation_count", 0).Error
}

func (r *sessionRepository) ListActive(ctx context.Context, assignmentID uint) ([]models.AssignmentSession, error) {
	var sessions []models.AssignmentSession
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("is_locked = ? AND ended_at IS NULL", false).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *sessionRepository) Stats(ctx context.Context, assignmentID uint) (SessionStats, error) {
	var stats SessionStats
	err := r.db.WithContext(ctx).
		Model(&models.AssignmentSession{}).
		Select(
			"COUNT(*) AS total_sessions, "+
				"COUNT(CASE WHEN is_locked THEN 1 END) AS locked_sessions, "+
				"COUNT(CASE WHEN is_submitted THEN 1 END) AS submitted_sessions, "+
				"COALESCE(AVG(violation_count), 0) AS avg_violations").
		Where("assignment_id = ?", assignmentID).
		Scan(&stats).Error
	if err != nil {
		return SessionStats{}, err
	}

	return stats, nil
}
