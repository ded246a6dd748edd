package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/handler"
	"github.com/codecourt/codecourt-api/internal/service"
)

type stubGradingService struct {
	submitResponse dto.SubmissionResponse
	submitErr      error
	lastStudentID  uint
}

func (s *stubGradingService) Submit(_ context.Context, studentID uint, _ dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	s.lastStudentID = studentID
	return s.submitResponse, s.submitErr
}

func (s *stubGradingService) Get(_ context.Context, _ uint, _ uint, _ string) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func (s *stubGradingService) ListByStudent(_ context.Context, _ uint, _ dto.SubmissionListFilter) ([]dto.SubmissionResponse, error) {
	return nil, nil
}

func (s *stubGradingService) ListByAssignment(_ context.Context, _ uint, _ dto.SubmissionListFilter) ([]dto.SubmissionResponse, error) {
	return nil, nil
}

func (s *stubGradingService) Rerun(_ context.Context, _ uint) (dto.SubmissionResponse, error) {
	return dto.SubmissionResponse{}, nil
}

func newSubmissionApp(svc service.GradingService, userID uint) *fiber.App {
	app := fiber.New()
	if userID != 0 {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", userID)
			c.Locals("user_role", "student")
			return c.Next()
		})
	}

	handler.NewSubmissionHandler(svc, zerolog.Nop()).Register(app.Group("/submissions"))
	return app
}

func validSubmissionPayload() dto.SubmissionCreateRequest {
	return dto.SubmissionCreateRequest{
		AssignmentID: 1,
		ProblemID:    1,
		Code:         "print(input())",
		Language:     "python",
	}
}

func TestSubmitQueued(t *testing.T) {
	svc := &stubGradingService{
		submitResponse: dto.SubmissionResponse{ID: 7, Status: "pending"},
	}
	app := newSubmissionApp(svc, 10)

	resp, body := performJSON(t, app, http.MethodPost, "/submissions", validSubmissionPayload())

	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, uint(10), svc.lastStudentID)
}

func TestSubmitAlreadySolvedIsForbidden(t *testing.T) {
	svc := &stubGradingService{submitErr: service.ErrAlreadySolved}
	app := newSubmissionApp(svc, 10)

	resp, body := performJSON(t, app, http.MethodPost, "/submissions", validSubmissionPayload())

	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.False(t, body.Success)
	require.Equal(t, "problem already solved", body.Message)
}

func TestSubmitWithoutSessionIsForbidden(t *testing.T) {
	svc := &stubGradingService{submitErr: service.ErrSessionNotFound}
	app := newSubmissionApp(svc, 10)

	resp, _ := performJSON(t, app, http.MethodPost, "/submissions", validSubmissionPayload())

	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
