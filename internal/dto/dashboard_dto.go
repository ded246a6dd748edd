package dto

import (
	"github.com/codecourt/codecourt-api/internal/repository"
)

// StudentDashboardResponse aggregates everything the student landing page needs.
type StudentDashboardResponse struct {
	ActiveAssignments   []AssignmentResponse `json:"active_assignments"`
	UpcomingAssignments []AssignmentResponse `json:"upcoming_assignments"`
	RecentSubmissions   []SubmissionResponse `json:"recent_submissions"`
}

// AssignmentProgressResponse reports a student's standing in one assignment.
type AssignmentProgressResponse struct {
	AssignmentID uint                            `json:"assignment_id"`
	Problems     []repository.ProblemProgressRow `json:"problems"`
	TotalScore   float64                         `json:"total_score"`
	SolvedCount  int64                           `json:"solved_count"`
}

// LeaderboardResponse serializes the ranked standings of one assignment.
type LeaderboardResponse struct {
	AssignmentID uint                        `json:"assignment_id"`
	Rows         []repository.LeaderboardRow `json:"rows"`
}

// ProctorOverviewResponse aggregates proctoring state for the admin console.
type ProctorOverviewResponse struct {
	AssignmentID     uint                             `json:"assignment_id"`
	Stats            repository.SessionStats          `json:"stats"`
	ViolationSummary []repository.ViolationSummaryRow `json:"violation_summary"`
	HighRiskStudents []repository.HighRiskStudentRow  `json:"high_risk_students"`
}
