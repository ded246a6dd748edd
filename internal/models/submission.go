package models

import "time"

// Submission is one graded attempt at a problem. It is created pending and
// moved to exactly one terminal status per grading pass; an admin rerun
// resets it to pending and grades it again.
type Submission struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StudentID       uint       `gorm:"not null;index" json:"student_id"`
	AssignmentID    uint       `gorm:"not null;index" json:"assignment_id"`
	ProblemID       uint       `gorm:"not null;index" json:"problem_id"`
	Code            string     `gorm:"type:text;not null" json:"code"`
	Language        string     `gorm:"size:32;not null" json:"language"`
	Status          string     `gorm:"size:32;not null;default:pending" json:"status"`
	Score           int        `gorm:"not null;default:0" json:"score"`
	ExecutionTimeMs float64    `json:"execution_time"`
	MemoryUsedKB    int        `json:"memory_used"`
	TestCasesPassed int        `gorm:"not null;default:0" json:"test_cases_passed"`
	TotalTestCases  int        `gorm:"not null;default:0" json:"total_test_cases"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message"`
	SubmittedAt     time.Time  `gorm:"autoCreateTime" json:"submitted_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Student         Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Problem         Problem    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problem,omitempty"`
	Assignment      Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment,omitempty"`
}

const (
	// SubmissionStatusPending marks a submission awaiting grading.
	SubmissionStatusPending = "pending"
	// SubmissionStatusAccepted marks a submission that passed every test case.
	SubmissionStatusAccepted = "accepted"
	// SubmissionStatusWrongAnswer marks a completed run with failed cases.
	SubmissionStatusWrongAnswer = "wrong_answer"
	// SubmissionStatusRuntimeError marks crashes and grading failures.
	SubmissionStatusRuntimeError = "runtime_error"
	// SubmissionStatusCompilationError marks submissions that failed to build.
	SubmissionStatusCompilationError = "compilation_error"
	// SubmissionStatusTimeLimitExceeded marks a case that ran past its limit.
	SubmissionStatusTimeLimitExceeded = "time_limit_exceeded"
	// SubmissionStatusMemoryLimitExceeded marks a case that exceeded memory.
	SubmissionStatusMemoryLimitExceeded = "memory_limit_exceeded"
)

// IsTerminal reports whether the status is a final grading outcome.
func (s Submission) IsTerminal() bool {
	return s.Status != SubmissionStatusPending
}
