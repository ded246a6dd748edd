package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codecourt/codecourt-api/pkg/judge"
)

func TestOutputMatches(t *testing.T) {
	cases := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"exact", "42\n", "42", true},
		{"trailing spaces", "42  \nhello \n", "42\nhello", true},
		{"crlf", "a\r\nb\r\n", "a\nb", true},
		{"trailing blank lines", "a\nb\n\n\n", "a\nb", true},
		{"different value", "41\n", "42", false},
		{"extra line", "42\nextra\n", "42", false},
		{"leading spaces differ", "  42", "42", false},
		{"both empty", "", "", true},
		{"empty vs content", "", "42", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, outputMatches(tc.actual, tc.expected))
		})
	}
}

func TestVerdictFromTimedOutRun(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		timedOut: true,
		duration: 3 * time.Second,
	}, languages["python"], judge.RunRequest{TimeLimit: 2 * time.Second})

	require.False(t, verdict.Passed)
	require.Equal(t, judge.StatusTimeLimitExceeded, verdict.Status)
	require.NotEmpty(t, verdict.Error)
}

func TestVerdictFromMemoryLimitBreach(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		exitCode:    0,
		stdout:      "42\n",
		memoryBytes: 512 * 1024 * 1024,
	}, languages["python"], judge.RunRequest{ExpectedOutput: "42", MemoryLimitKB: 256000})

	require.False(t, verdict.Passed)
	require.Equal(t, judge.StatusMemoryLimitExceeded, verdict.Status)
}

func TestVerdictFromCompilerFailure(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		exitCode: 1,
		stderr:   "main.cpp:1:1: error: expected unqualified-id",
	}, languages["cpp"], judge.RunRequest{})

	require.Equal(t, judge.StatusCompilationError, verdict.Status)
}

func TestVerdictFromRuntimeFailure(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		exitCode: 1,
		stderr:   "Traceback (most recent call last)",
	}, languages["python"], judge.RunRequest{})

	require.Equal(t, judge.StatusRuntimeError, verdict.Status)
}

func TestVerdictFromAcceptedRun(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		exitCode:    0,
		stdout:      "hello\n",
		duration:    25 * time.Millisecond,
		memoryBytes: 2048 * 1024,
	}, languages["python"], judge.RunRequest{ExpectedOutput: "hello"})

	require.True(t, verdict.Passed)
	require.Equal(t, judge.StatusAccepted, verdict.Status)
	require.InDelta(t, 25.0, verdict.ExecutionTimeMs, 0.001)
	require.Equal(t, 2048, verdict.MemoryKB)
}

func TestVerdictFromWrongAnswer(t *testing.T) {
	e := &Executor{}

	verdict := e.verdictFrom(runResult{
		exitCode: 0,
		stdout:   "goodbye\n",
	}, languages["python"], judge.RunRequest{ExpectedOutput: "hello"})

	require.False(t, verdict.Passed)
	require.Equal(t, judge.StatusWrongAnswer, verdict.Status)
}
