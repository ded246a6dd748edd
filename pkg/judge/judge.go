package judge

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrExecutionFailed indicates the external judge could not be reached or
// returned an unusable response. Callers are expected to convert this into a
// runtime-error grading outcome rather than propagate it.
var ErrExecutionFailed = errors.New("code execution failed")

// Status is the per-test-case outcome reported by a judge backend.
type Status string

const (
	StatusAccepted            Status = "accepted"
	StatusWrongAnswer         Status = "wrong_answer"
	StatusRuntimeError        Status = "runtime_error"
	StatusCompilationError    Status = "compilation_error"
	StatusTimeLimitExceeded   Status = "time_limit_exceeded"
	StatusMemoryLimitExceeded Status = "memory_limit_exceeded"
)

// RunRequest describes a single test-case execution.
type RunRequest struct {
	Source         string
	Language       string
	Stdin          string
	ExpectedOutput string
	TimeLimit      time.Duration
	MemoryLimitKB  int
}

// Verdict summarises the outcome of running one test case.
type Verdict struct {
	Passed          bool
	Status          Status
	Output          string
	Error           string
	ExecutionTimeMs float64
	MemoryKB        int
}

// Client runs submitted code against a single test case and reports a verdict.
type Client interface {
	RunTestCase(ctx context.Context, req RunRequest) (Verdict, error)
}

// languageIDs maps portal language tags to Judge0 language identifiers.
var languageIDs = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
	"cpp":        54,
	"c":          50,
	"csharp":     51,
	"ruby":       72,
	"go":         60,
	"rust":       73,
}

const defaultLanguageID = 71 // python

// LanguageID resolves a language tag to the judge's identifier. Unknown tags
// fall back to python; rejecting them outright would fail submissions from
// older clients that send unnormalised tags.
func LanguageID(language string) int {
	if id, ok := languageIDs[strings.ToLower(strings.TrimSpace(language))]; ok {
		return id
	}
	return defaultLanguageID
}

// StatusFromJudge0 maps a Judge0 status identifier onto an internal status.
// Identifiers 1 and 2 are non-terminal (in queue / processing); anything the
// table does not know is treated as a runtime error.
func StatusFromJudge0(statusID int) Status {
	switch statusID {
	case 3:
		return StatusAccepted
	case 4:
		return StatusWrongAnswer
	case 5:
		return StatusTimeLimitExceeded
	case 6:
		return StatusCompilationError
	case 7, 8, 9, 10, 11, 12, 13, 14:
		return StatusRuntimeError
	default:
		return StatusRuntimeError
	}
}
