package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
)

type detachTrackingProblemRepo struct {
	stubProblemRepo
	detached []uint
}

func (r *detachTrackingProblemRepo) DetachFromAssignment(_ context.Context, assignmentID uint) error {
	r.detached = append(r.detached, assignmentID)
	return nil
}

func newAssignmentFixture(t *testing.T) (AssignmentService, *stubAssignmentRepo, *detachTrackingProblemRepo, *stubSubmissionRepo) {
	t.Helper()

	assignments := &stubAssignmentRepo{assignments: make(map[uint]models.Assignment)}
	problems := &detachTrackingProblemRepo{}
	submissions := newStubSubmissionRepo()
	svc := NewAssignmentService(assignments, problems, submissions, validator.New(), zerolog.Nop())

	return svc, assignments, problems, submissions
}

func validAssignmentRequest() dto.AssignmentCreateRequest {
	return dto.AssignmentCreateRequest{
		Title:     "Final Exam",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(3 * time.Hour),
	}
}

func TestAssignmentCreateDefaults(t *testing.T) {
	svc, assignments, _, _ := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), 99, validAssignmentRequest())
	require.NoError(t, err)

	stored := assignments.assignments[created.ID]
	require.True(t, stored.IsActive)
	require.True(t, stored.AllowMultipleSubmissions)
	require.Equal(t, models.DefaultMaxViolations, stored.MaxViolations)
	require.Equal(t, uint(99), stored.CreatedBy)
}

func TestAssignmentCreateRejectsInvertedWindow(t *testing.T) {
	svc, _, _, _ := newAssignmentFixture(t)

	payload := validAssignmentRequest()
	payload.EndTime = payload.StartTime.Add(-time.Hour)
	_, err := svc.Create(context.Background(), 99, payload)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestAssignmentUpdateTogglesActive(t *testing.T) {
	svc, assignments, _, _ := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), 99, validAssignmentRequest())
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.False(t, assignments.assignments[created.ID].IsActive)
}

func TestAssignmentUpdateRevalidatesWindow(t *testing.T) {
	svc, _, _, _ := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), 99, validAssignmentRequest())
	require.NoError(t, err)

	badEnd := time.Now().Add(-time.Hour)
	_, err = svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{EndTime: &badEnd})
	require.ErrorIs(t, err, ErrAssignmentWindowInvalid)
}

func TestAssignmentDeleteDetachesProblems(t *testing.T) {
	svc, assignments, problems, _ := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), 99, validAssignmentRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.Equal(t, []uint{created.ID}, problems.detached)
	require.NotContains(t, assignments.assignments, created.ID)
}

func TestAssignmentDeleteRefusedWithSubmissions(t *testing.T) {
	svc, _, _, submissions := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), 99, validAssignmentRequest())
	require.NoError(t, err)

	require.NoError(t, submissions.Create(context.Background(), &models.Submission{
		StudentID:    10,
		AssignmentID: created.ID,
		ProblemID:    1,
		Status:       models.SubmissionStatusPending,
	}))

	err = svc.Delete(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrAssignmentHasSubmissions)
}

func TestAssignmentDeleteUnknown(t *testing.T) {
	svc, _, _, _ := newAssignmentFixture(t)

	require.ErrorIs(t, svc.Delete(context.Background(), 42), ErrAssignmentNotFound)
}
