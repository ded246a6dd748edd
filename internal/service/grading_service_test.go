package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/repository"
	"github.com/codecourt/codecourt-api/pkg/judge"
)

type stubSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uint]models.Submission
	nextID      uint
}

func newStubSubmissionRepo() *stubSubmissionRepo {
	return &stubSubmissionRepo{submissions: make(map[uint]models.Submission)}
}

func (r *stubSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	submission.ID = r.nextID
	submission.SubmittedAt = time.Now()
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *stubSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *stubSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (r *stubSubmissionRepo) FindByStudentAndProblem(_ context.Context, studentID, problemID, assignmentID uint) ([]models.Submission, error) {
	return nil, nil
}

func (r *stubSubmissionRepo) HasAcceptedSubmission(_ context.Context, studentID, problemID, assignmentID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, submission := range r.submissions {
		if submission.StudentID == studentID && submission.ProblemID == problemID &&
			submission.AssignmentID == assignmentID && submission.Status == models.SubmissionStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubSubmissionRepo) ListByStudent(_ context.Context, studentID uint, _ repository.SubmissionFilter) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Submission
	for _, submission := range r.submissions {
		if submission.StudentID == studentID {
			matched = append(matched, submission)
		}
	}
	return matched, nil
}

func (r *stubSubmissionRepo) ListByAssignment(_ context.Context, assignmentID uint, _ repository.SubmissionFilter) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Submission
	for _, submission := range r.submissions {
		if submission.AssignmentID == assignmentID {
			matched = append(matched, submission)
		}
	}
	return matched, nil
}

func (r *stubSubmissionRepo) Leaderboard(_ context.Context, assignmentID uint) ([]repository.LeaderboardRow, error) {
	return nil, nil
}

func (r *stubSubmissionRepo) StudentProgress(_ context.Context, studentID, assignmentID uint) ([]repository.ProblemProgressRow, error) {
	return nil, nil
}

func (r *stubSubmissionRepo) CountSince(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type stubProblemRepo struct {
	problems map[uint]models.Problem
}

func (r *stubProblemRepo) List(_ context.Context) ([]models.Problem, error) { return nil, nil }

func (r *stubProblemRepo) ListByAssignment(_ context.Context, assignmentID uint) ([]models.Problem, error) {
	return nil, nil
}

func (r *stubProblemRepo) GetByID(_ context.Context, id uint) (models.Problem, error) {
	problem, ok := r.problems[id]
	if !ok {
		return models.Problem{}, gorm.ErrRecordNotFound
	}
	return problem, nil
}

func (r *stubProblemRepo) Create(_ context.Context, problem *models.Problem) error { return nil }
func (r *stubProblemRepo) Update(_ context.Context, problem *models.Problem) error { return nil }
func (r *stubProblemRepo) Delete(_ context.Context, id uint) error                 { return nil }
func (r *stubProblemRepo) DetachFromAssignment(_ context.Context, id uint) error   { return nil }

type stubTestCaseRepo struct {
	testCases []models.TestCase
}

func (r *stubTestCaseRepo) ListByProblem(_ context.Context, problemID uint, includeHidden bool) ([]models.TestCase, error) {
	var matched []models.TestCase
	for _, testCase := range r.testCases {
		if testCase.ProblemID != problemID {
			continue
		}
		if !includeHidden && testCase.IsHidden {
			continue
		}
		matched = append(matched, testCase)
	}
	return matched, nil
}

func (r *stubTestCaseRepo) ListSamples(_ context.Context, problemID uint) ([]models.TestCase, error) {
	return nil, nil
}

func (r *stubTestCaseRepo) GetByID(_ context.Context, id uint) (models.TestCase, error) {
	return models.TestCase{}, gorm.ErrRecordNotFound
}

func (r *stubTestCaseRepo) Create(_ context.Context, testCase *models.TestCase) error { return nil }
func (r *stubTestCaseRepo) CreateBatch(_ context.Context, testCases []models.TestCase) error {
	return nil
}
func (r *stubTestCaseRepo) Update(_ context.Context, testCase *models.TestCase) error { return nil }
func (r *stubTestCaseRepo) Delete(_ context.Context, id uint) error { return nil }

// scriptedJudge returns pre-baked verdicts in order and counts invocations.
type scriptedJudge struct {
	mu       sync.Mutex
	verdicts []judge.Verdict
	err      error
	calls    int
}

func (j *scriptedJudge) RunTestCase(_ context.Context, _ judge.RunRequest) (judge.Verdict, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return judge.Verdict{}, j.err
	}
	index := j.calls
	j.calls++
	if index >= len(j.verdicts) {
		return judge.Verdict{}, errors.New("no verdict scripted")
	}
	return j.verdicts[index], nil
}

func (j *scriptedJudge) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

type gradingFixture struct {
	svc         GradingService
	submissions *stubSubmissionRepo
	sessions    *stubSessionRepo
	judge       *scriptedJudge
}

func newGradingFixture(t *testing.T, assignment models.Assignment, testCases []models.TestCase, judgeStub *scriptedJudge) gradingFixture {
	t.Helper()

	problemID := uint(1)
	problem := models.Problem{ID: problemID, AssignmentID: &assignment.ID, Title: "Two Sum", TimeLimitMs: 2000, MemoryLimitKB: 256000, Points: 100}

	sessions := newStubSessionRepo()
	submissions := newStubSubmissionRepo()
	assignments := &stubAssignmentRepo{assignments: map[uint]models.Assignment{assignment.ID: assignment}}
	problems := &stubProblemRepo{problems: map[uint]models.Problem{problemID: problem}}
	cases := &stubTestCaseRepo{testCases: testCases}

	svc := NewGradingService(submissions, sessions, assignments, problems, cases, judgeStub, nil, validator.New(), zerolog.Nop())

	return gradingFixture{svc: svc, submissions: submissions, sessions: sessions, judge: judgeStub}
}

func (f gradingFixture) startSession(t *testing.T, studentID, assignmentID uint) {
	t.Helper()
	require.NoError(t, f.sessions.Create(context.Background(), &models.AssignmentSession{
		StudentID:    studentID,
		AssignmentID: assignmentID,
	}))
}

func (f gradingFixture) waitForGrading(t *testing.T) {
	t.Helper()
	f.svc.(*gradingService).wg.Wait()
}

func threeCases() []models.TestCase {
	return []models.TestCase{
		{ID: 1, ProblemID: 1, Input: "1 2", ExpectedOutput: "3", Points: 10},
		{ID: 2, ProblemID: 1, Input: "2 3", ExpectedOutput: "5", Points: 10},
		{ID: 3, ProblemID: 1, Input: "4 5", ExpectedOutput: "9", Points: 20},
	}
}

func validSubmission() dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		AssignmentID: 1,
		ProblemID:    1,
		Code:         "print(sum(map(int, input().split())))",
		Language:     "python",
	}
}

func TestGradingSubmitRequiresSession(t *testing.T) {
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), &scriptedJudge{})

	_, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGradingSubmitRejectsLockedSession(t *testing.T) {
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), &scriptedJudge{})
	fixture.startSession(t, 1, 1)
	_, err := fixture.sessions.LockSession(context.Background(), 1, 1, time.Now())
	require.NoError(t, err)

	_, err = fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.ErrorIs(t, err, ErrSessionLocked)
}

func TestGradingSubmitRejectsEndedAssignment(t *testing.T) {
	assignment := openAssignment(5)
	assignment.EndTime = time.Now().Add(-time.Minute)
	fixture := newGradingFixture(t, assignment, threeCases(), &scriptedJudge{})
	fixture.startSession(t, 1, 1)

	_, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.ErrorIs(t, err, ErrAssignmentEnded)
}

func TestGradingSubmitRejectsForeignProblem(t *testing.T) {
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), &scriptedJudge{})
	fixture.startSession(t, 1, 1)

	payload := validSubmission()
	payload.ProblemID = 1
	svc := fixture.svc.(*gradingService)
	other := uint(9)
	svc.problems.(*stubProblemRepo).problems[1] = models.Problem{ID: 1, AssignmentID: &other}

	_, err := fixture.svc.Submit(context.Background(), 1, payload)
	require.ErrorIs(t, err, ErrProblemNotInAssignment)
}

func TestGradingSubmitRejectsResolvedProblemWhenSingleShot(t *testing.T) {
	assignment := openAssignment(5)
	assignment.AllowMultipleSubmissions = false
	fixture := newGradingFixture(t, assignment, threeCases(), &scriptedJudge{})
	fixture.startSession(t, 1, 1)

	require.NoError(t, fixture.submissions.Create(context.Background(), &models.Submission{
		StudentID: 1, AssignmentID: 1, ProblemID: 1, Code: "x", Language: "python",
		Status: models.SubmissionStatusAccepted,
	}))

	_, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.ErrorIs(t, err, ErrAlreadySolved)
}

func TestGradingAllCasesPassYieldsAccepted(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 12, MemoryKB: 1024},
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 30, MemoryKB: 2048},
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 8, MemoryKB: 512},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, created.Status)

	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAccepted, graded.Status)
	require.Equal(t, 3, graded.TestCasesPassed)
	require.Equal(t, 3, graded.TotalTestCases)
	require.Equal(t, 40, graded.Score)
	require.InDelta(t, 30.0, graded.ExecutionTimeMs, 0.001)
	require.Equal(t, 2048, graded.MemoryUsedKB)
}

func TestGradingFailedCaseYieldsWrongAnswer(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 10},
		{Passed: false, Status: judge.StatusWrongAnswer, Output: "4", Error: "expected 5, got 4"},
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 9},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusWrongAnswer, graded.Status)
	require.Equal(t, 2, graded.TestCasesPassed)
	require.Equal(t, 30, graded.Score)
	require.Equal(t, "expected 5, got 4", graded.ErrorMessage, "the first case error must survive the full pass")
	require.Equal(t, 3, judgeStub.callCount(), "wrong answers must not stop the pass")
}

func TestGradingRuntimeErrorCaseRunsRemainingCases(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: false, Status: judge.StatusRuntimeError, Error: "IndexError: list index out of range"},
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 11},
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 7},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, judgeStub.callCount(), "only resource-limit verdicts stop the pass")
	require.Equal(t, models.SubmissionStatusWrongAnswer, graded.Status)
	require.Equal(t, 2, graded.TestCasesPassed)
	require.Equal(t, 30, graded.Score)
	require.Equal(t, "IndexError: list index out of range", graded.ErrorMessage)
}

func TestGradingCompilationErrorCaseRunsRemainingCases(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: false, Status: judge.StatusCompilationError, Error: "main.cpp:3: expected ';'"},
		{Passed: false, Status: judge.StatusCompilationError, Error: "main.cpp:3: expected ';'"},
		{Passed: false, Status: judge.StatusCompilationError, Error: "main.cpp:3: expected ';'"},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, judgeStub.callCount())
	require.Equal(t, models.SubmissionStatusWrongAnswer, graded.Status)
	require.Equal(t, 0, graded.TestCasesPassed)
	require.Equal(t, 0, graded.Score)
	require.Equal(t, "main.cpp:3: expected ';'", graded.ErrorMessage)
}

func TestGradingTimeLimitStopsEarly(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: true, Status: judge.StatusAccepted, ExecutionTimeMs: 10},
		{Passed: false, Status: judge.StatusTimeLimitExceeded, ExecutionTimeMs: 2000, Error: "time limit exceeded"},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusTimeLimitExceeded, graded.Status)
	require.Equal(t, 1, graded.TestCasesPassed)
	require.Equal(t, 10, graded.Score)
	require.Equal(t, 2, judgeStub.callCount(), "resource-limit verdicts stop the pass")
}

func TestGradingNoTestCasesYieldsRuntimeError(t *testing.T) {
	fixture := newGradingFixture(t, openAssignment(5), nil, &scriptedJudge{})
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRuntimeError, graded.Status)
	require.Equal(t, "No test cases available for this problem", graded.ErrorMessage)
}

func TestGradingJudgeFailureNeverLeavesPending(t *testing.T) {
	judgeStub := &scriptedJudge{err: errors.New("judge unreachable")}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRuntimeError, graded.Status)
	require.Contains(t, graded.ErrorMessage, "judge unreachable")
}

func TestGradingRerunResetsAndRegrades(t *testing.T) {
	judgeStub := &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: false, Status: judge.StatusWrongAnswer},
		{Passed: false, Status: judge.StatusWrongAnswer},
		{Passed: false, Status: judge.StatusWrongAnswer},
		{Passed: true, Status: judge.StatusAccepted},
		{Passed: true, Status: judge.StatusAccepted},
		{Passed: true, Status: judge.StatusAccepted},
	}}
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), judgeStub)
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	graded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusWrongAnswer, graded.Status)

	rerun, err := fixture.svc.Rerun(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, rerun.Status)
	fixture.waitForGrading(t)

	regraded, err := fixture.submissions.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAccepted, regraded.Status)
	require.Equal(t, 40, regraded.Score)
}

func TestGradingGetEnforcesOwnership(t *testing.T) {
	fixture := newGradingFixture(t, openAssignment(5), threeCases(), &scriptedJudge{verdicts: []judge.Verdict{
		{Passed: true, Status: judge.StatusAccepted},
		{Passed: true, Status: judge.StatusAccepted},
		{Passed: true, Status: judge.StatusAccepted},
	}})
	fixture.startSession(t, 1, 1)

	created, err := fixture.svc.Submit(context.Background(), 1, validSubmission())
	require.NoError(t, err)
	fixture.waitForGrading(t)

	_, err = fixture.svc.Get(context.Background(), created.ID, 2, models.RoleStudent)
	require.ErrorIs(t, err, ErrSubmissionForbidden)

	own, err := fixture.svc.Get(context.Background(), created.ID, 1, models.RoleStudent)
	require.NoError(t, err)
	require.NotEmpty(t, own.Code)

	asAdmin, err := fixture.svc.Get(context.Background(), created.ID, 99, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAccepted, asAdmin.Status)
}
