package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codecourt/codecourt-api/internal/models"
)

func TestViolationRepositoryFindByStudentOptionalAssignment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 1, ViolationType: "tab_switch"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 2, ViolationType: "fullscreen_exit"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 2, AssignmentID: 1, ViolationType: "tab_switch"}).Error)

	all, err := repo.FindByStudent(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assignmentID := uint(2)
	scoped, err := repo.FindByStudent(context.Background(), 1, &assignmentID)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "fullscreen_exit", scoped[0].ViolationType)
}

func TestViolationRepositoryDeleteByStudentAndAssignmentReportsCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 1, ViolationType: "tab_switch"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 1, ViolationType: "copy_paste"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 2, ViolationType: "tab_switch"}).Error)

	cleared, err := repo.DeleteByStudentAndAssignment(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), cleared)

	remaining, err := repo.FindByStudent(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestViolationRepositorySummaryGroupsByType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 1, ViolationType: "tab_switch"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 2, AssignmentID: 1, ViolationType: "tab_switch"}).Error)
	require.NoError(t, db.Create(&models.Violation{StudentID: 1, AssignmentID: 1, ViolationType: "copy_paste"}).Error)

	rows, err := repo.Summary(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "tab_switch", rows[0].ViolationType)
	require.Equal(t, int64(2), rows[0].Count)
	require.Equal(t, int64(2), rows[0].AffectedStudents)
}

func TestViolationRepositoryHighRiskStudentsAppliesThreshold(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	risky := models.Student{RollNumber: "CS-010", Name: "Mallory", Email: "mallory@example.com", PasswordHash: "x"}
	calm := models.Student{RollNumber: "CS-011", Name: "Trent", Email: "trent@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&risky).Error)
	require.NoError(t, db.Create(&calm).Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Violation{StudentID: risky.ID, AssignmentID: 1, ViolationType: "tab_switch"}).Error)
	}
	require.NoError(t, db.Create(&models.Violation{StudentID: calm.ID, AssignmentID: 1, ViolationType: "tab_switch"}).Error)

	rows, err := repo.HighRiskStudents(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, risky.ID, rows[0].StudentID)
	require.Equal(t, int64(3), rows[0].ViolationCount)
	require.Equal(t, "Mallory", rows[0].Name)
}
