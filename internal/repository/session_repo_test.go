package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Admin{},
		&models.Assignment{},
		&models.Problem{},
		&models.TestCase{},
		&models.AssignmentSession{},
		&models.Violation{},
		&models.Submission{},
	))
	return db
}

func TestSessionRepositoryIncrementViolationCountReturnsUpdatedRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	session := models.AssignmentSession{StudentID: 1, AssignmentID: 2, ViolationCount: 3}
	require.NoError(t, db.Create(&session).Error)

	updated, err := repo.IncrementViolationCount(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 4, updated.ViolationCount)

	updated, err = repo.IncrementViolationCount(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, 5, updated.ViolationCount)
}

func TestSessionRepositoryIncrementViolationCountMissingSession(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	_, err := repo.IncrementViolationCount(context.Background(), 99, 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSessionRepositoryLockSessionSetsEndedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	session := models.AssignmentSession{StudentID: 7, AssignmentID: 3}
	require.NoError(t, db.Create(&session).Error)

	lockedAt := time.Now().UTC().Truncate(time.Second)
	locked, err := repo.LockSession(context.Background(), 7, 3, lockedAt)
	require.NoError(t, err)
	require.True(t, locked.IsLocked)
	require.NotNil(t, locked.EndedAt)
	require.False(t, locked.IsActive())
}

func TestSessionRepositoryResetViolationCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	session := models.AssignmentSession{StudentID: 4, AssignmentID: 1, ViolationCount: 6}
	require.NoError(t, db.Create(&session).Error)

	require.NoError(t, repo.ResetViolationCount(context.Background(), 4, 1))

	found, err := repo.FindByStudentAndAssignment(context.Background(), 4, 1)
	require.NoError(t, err)
	require.Zero(t, found.ViolationCount)
}

func TestSessionRepositoryListActiveSkipsLockedAndEnded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	ended := time.Now()
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 1, AssignmentID: 5}).Error)
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 2, AssignmentID: 5, IsLocked: true}).Error)
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 3, AssignmentID: 5, EndedAt: &ended}).Error)
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 4, AssignmentID: 6}).Error)

	active, err := repo.ListActive(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, uint(1), active[0].StudentID)
}

func TestSessionRepositoryStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)

	ended := time.Now()
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 1, AssignmentID: 9, ViolationCount: 2}).Error)
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 2, AssignmentID: 9, ViolationCount: 4, IsLocked: true, EndedAt: &ended}).Error)
	require.NoError(t, db.Create(&models.AssignmentSession{StudentID: 3, AssignmentID: 9, IsSubmitted: true, EndedAt: &ended}).Error)

	stats, err := repo.Stats(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalSessions)
	require.Equal(t, int64(1), stats.LockedSessions)
	require.Equal(t, int64(1), stats.SubmittedSessions)
	require.InDelta(t, 2.0, stats.AvgViolations, 0.001)
}
