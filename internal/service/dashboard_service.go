package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/repository"
)

// DashboardService aggregates read models for students and admins. Expensive
// aggregates are cached in redis for a short TTL.
type DashboardService interface {
	StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error)
	AssignmentProgress(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentProgressResponse, error)
	Leaderboard(ctx context.Context, assignmentID uint) (dto.LeaderboardResponse, error)
	ProctorOverview(ctx context.Context, assignmentID uint) (dto.ProctorOverviewResponse, error)
}

// highRiskThreshold flags students for the admin overview.
const highRiskThreshold = 3

type dashboardService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	sessions    repository.SessionRepository
	violations  repository.ViolationRepository
	redis       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewDashboardService constructs a new dashboard service. The redis client is
// optional; without it every call recomputes.
func NewDashboardService(assignmentRepo repository.AssignmentRepository, submissionRepo repository.SubmissionRepository, sessionRepo repository.SessionRepository, violationRepo repository.ViolationRepository, redisClient *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &dashboardService{
		assignments: assignmentRepo,
		submissions: submissionRepo,
		sessions:    sessionRepo,
		violations:  violationRepo,
		redis:       redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
		now:         time.Now,
	}
}

func (s *dashboardService) StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error) {
	now := s.now()

	active, err := s.assignments.ListActive(ctx, now)
	if err != nil {
		return dto.StudentDashboardResponse{}, fmt.Errorf("list active assignments: %w", err)
	}

	upcoming, err := s.assignments.ListUpcoming(ctx, now)
	if err != nil {
		return dto.StudentDashboardResponse{}, fmt.Errorf("list upcoming assignments: %w", err)
	}

	recent, err := s.submissions.ListByStudent(ctx, studentID, repository.SubmissionFilter{Limit: 10})
	if err != nil {
		return dto.StudentDashboardResponse{}, fmt.Errorf("list recent submissions: %w", err)
	}

	return dto.StudentDashboardResponse{
		ActiveAssignments:   dto.NewAssignmentResponseSlice(active),
		UpcomingAssignments: dto.NewAssignmentResponseSlice(upcoming),
		RecentSubmissions:   dto.NewSubmissionResponseSlice(recent),
	}, nil
}

func (s *dashboardService) AssignmentProgress(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentProgressResponse, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentProgressResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentProgressResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	problems, err := s.submissions.StudentProgress(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AssignmentProgressResponse{}, fmt.Errorf("load progress: %w", err)
	}

	response := dto.AssignmentProgressResponse{
		AssignmentID: assignmentID,
		Problems:     problems,
	}
	for _, row := range problems {
		response.TotalScore += row.BestScore
		if row.Solved {
			response.SolvedCount++
		}
	}

	return response, nil
}

func (s *dashboardService) Leaderboard(ctx context.Context, assignmentID uint) (dto.LeaderboardResponse, error) {
	cacheKey := fmt.Sprintf("codecourt:leaderboard:%d", assignmentID)

	var cached dto.LeaderboardResponse
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardResponse{}, ErrAssignmentNotFound
		}
		return dto.LeaderboardResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	rows, err := s.submissions.Leaderboard(ctx, assignmentID)
	if err != nil {
		return dto.LeaderboardResponse{}, fmt.Errorf("load leaderboard: %w", err)
	}

	response := dto.LeaderboardResponse{
		AssignmentID: assignmentID,
		Rows:         rows,
	}
	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func (s *dashboardService) ProctorOverview(ctx context.Context, assignmentID uint) (dto.ProctorOverviewResponse, error) {
	cacheKey := fmt.Sprintf("codecourt:proctor_overview:%d", assignmentID)

	var cached dto.ProctorOverviewResponse
	if s.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProctorOverviewResponse{}, ErrAssignmentNotFound
		}
		return dto.ProctorOverviewResponse{}, fmt.Errorf("load assignment: %w", err)
	}

	stats, err := s.sessions.Stats(ctx, assignmentID)
	if err != nil {
		return dto.ProctorOverviewResponse{}, fmt.Errorf("load session stats: %w", err)
	}

	summary, err := s.violations.Summary(ctx, assignmentID)
	if err != nil {
		return dto.ProctorOverviewResponse{}, fmt.Errorf("load violation summary: %w", err)
	}

	highRisk, err := s.violations.HighRiskStudents(ctx, assignmentID, highRiskThreshold)
	if err != nil {
		return dto.ProctorOverviewResponse{}, fmt.Errorf("load high risk students: %w", err)
	}

	response := dto.ProctorOverviewResponse{
		AssignmentID:     assignmentID,
		Stats:            stats,
		ViolationSummary: summary,
		HighRiskStudents: highRisk,
	}
	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func (s *dashboardService) readCache(ctx context.Context, key string, target any) bool {
	if s.redis == nil {
		return false
	}

	payload, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(payload, target); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache entry invalid")
		return false
	}

	return true
}

func (s *dashboardService) writeCache(ctx context.Context, key string, value any) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache marshal failed")
		return
	}

	if err := s.redis.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
}
