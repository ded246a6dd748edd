package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
)

type countingSubmissionRepo struct {
	*stubSubmissionRepo
	leaderboardRows  []repository.LeaderboardRow
	leaderboardCalls int
}

func (r *countingSubmissionRepo) Leaderboard(_ context.Context, assignmentID uint) ([]repository.LeaderboardRow, error) {
	r.leaderboardCalls++
	return r.leaderboardRows, nil
}

type countingViolationRepo struct {
	*stubViolationRepo
	summaryRows  []repository.ViolationSummaryRow
	highRiskRows []repository.HighRiskStudentRow
	summaryCalls int
}

func (r *countingViolationRepo) Summary(_ context.Context, assignmentID uint) ([]repository.ViolationSummaryRow, error) {
	r.summaryCalls++
	return r.summaryRows, nil
}

func (r *countingViolationRepo) HighRiskStudents(_ context.Context, assignmentID uint, threshold int) ([]repository.HighRiskStudentRow, error) {
	return r.highRiskRows, nil
}

func newDashboardFixture(t *testing.T, assignment models.Assignment) (DashboardService, *countingSubmissionRepo, *countingViolationRepo) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	assignments := &stubAssignmentRepo{assignments: map[uint]models.Assignment{assignment.ID: assignment}}
	submissions := &countingSubmissionRepo{
		stubSubmissionRepo: newStubSubmissionRepo(),
		leaderboardRows: []repository.LeaderboardRow{
			{StudentID: 7, RollNumber: "CS21B007", Name: "Grace", TotalScore: 90, ProblemsSolved: 3, Attempts: 5},
			{StudentID: 8, RollNumber: "CS21B008", Name: "Alan", TotalScore: 60, ProblemsSolved: 2, Attempts: 4},
		},
	}
	violations := &countingViolationRepo{
		stubViolationRepo: &stubViolationRepo{},
		summaryRows: []repository.ViolationSummaryRow{
			{ViolationType: "tab_switch", Count: 4, AffectedStudents: 2},
		},
		highRiskRows: []repository.HighRiskStudentRow{
			{StudentID: 7, RollNumber: "CS21B007", Name: "Grace", ViolationCount: 3},
		},
	}

	svc := NewDashboardService(assignments, submissions, newStubSessionRepo(), violations, redisClient, time.Minute, zerolog.Nop())

	return svc, submissions, violations
}

func TestLeaderboardReturnsRows(t *testing.T) {
	svc, _, _ := newDashboardFixture(t, openAssignment(5))

	leaderboard, err := svc.Leaderboard(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, uint(1), leaderboard.AssignmentID)
	require.Len(t, leaderboard.Rows, 2)
	require.Equal(t, "CS21B007", leaderboard.Rows[0].RollNumber)
	require.InDelta(t, 90.0, leaderboard.Rows[0].TotalScore, 0.001)
}

func TestLeaderboardServesSecondReadFromCache(t *testing.T) {
	svc, submissions, _ := newDashboardFixture(t, openAssignment(5))

	first, err := svc.Leaderboard(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Leaderboard(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, submissions.leaderboardCalls)
}

func TestLeaderboardUnknownAssignment(t *testing.T) {
	svc, _, _ := newDashboardFixture(t, openAssignment(5))

	_, err := svc.Leaderboard(context.Background(), 99)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestProctorOverviewAggregates(t *testing.T) {
	svc, _, violations := newDashboardFixture(t, openAssignment(5))

	overview, err := svc.ProctorOverview(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, uint(1), overview.AssignmentID)
	require.Len(t, overview.ViolationSummary, 1)
	require.Equal(t, "tab_switch", overview.ViolationSummary[0].ViolationType)
	require.Len(t, overview.HighRiskStudents, 1)
	require.Equal(t, uint(7), overview.HighRiskStudents[0].StudentID)

	_, err = svc.ProctorOverview(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, violations.summaryCalls)
}

func TestAssignmentProgressTotals(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	assignment := openAssignment(5)
	assignments := &stubAssignmentRepo{assignments: map[uint]models.Assignment{assignment.ID: assignment}}
	submissions := &progressSubmissionRepo{stubSubmissionRepo: newStubSubmissionRepo()}

	svc := NewDashboardService(assignments, submissions, newStubSessionRepo(), &stubViolationRepo{}, redisClient, time.Minute, zerolog.Nop())

	progress, err := svc.AssignmentProgress(context.Background(), 7, 1)
	require.NoError(t, err)

	require.Equal(t, uint(1), progress.AssignmentID)
	require.Len(t, progress.Problems, 3)
	require.InDelta(t, 70.0, progress.TotalScore, 0.001)
	require.Equal(t, int64(2), progress.SolvedCount)
}

type progressSubmissionRepo struct {
	*stubSubmissionRepo
}

func (r *progressSubmissionRepo) StudentProgress(_ context.Context, studentID, assignmentID uint) ([]repository.ProblemProgressRow, error) {
	return []repository.ProblemProgressRow{
		{ProblemID: 1, Title: "Two Sum", BestScore: 40, Solved: true, Attempts: 2},
		{ProblemID: 2, Title: "Graph Paths", BestScore: 30, Solved: true, Attempts: 1},
		{ProblemID: 3, Title: "Hard DP", BestScore: 0, Solved: false, Attempts: 3},
	}, nil
}
