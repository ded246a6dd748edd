package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/service"
	"github.com/codecourt/codecourt-api/internal/utils"
)

// ProctorHandler manages the student-facing proctoring endpoints.
type ProctorHandler struct {
	service service.ProctorService
	logger  zerolog.Logger
}

// NewProctorHandler builds a proctor handler instance.
func NewProctorHandler(service service.ProctorService, logger zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		service: service,
		logger:  logger.With().Str("component", "proctor_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ProctorHandler) Register(router fiber.Router) {
	router.Post("/sessions/start", h.startSession)
	router.Post("/sessions/end", h.endSession)
	router.Get("/sessions/:assignmentId", h.getSession)
	router.Post("/violations", h.recordViolation)
	router.Get("/violations", h.listViolations)
}

func (h *ProctorHandler) startSession(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SessionStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.StartSession(c.Context(), studentID, payload, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return h.handleError(c, err)
	}

	if session.Resumed {
		return utils.SendSuccess(c, "session resumed", session)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", session)
}

func (h *ProctorHandler) endSession(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SessionEndRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.EndSession(c.Context(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session ended", session)
}

func (h *ProctorHandler) getSession(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	session, err := h.service.GetSession(c.Context(), studentID, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session retrieved", session)
}

func (h *ProctorHandler) recordViolation(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.ViolationReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.service.RecordViolation(c.Context(), studentID, payload)
	if err != nil {
		// Reporting without a session means the student never started the
		// assignment, which is a policy breach rather than a lookup miss.
		if errors.Is(err, service.ErrSessionNotFound) {
			return utils.SendError(c, fiber.StatusForbidden, "no active session, start the assignment first")
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "violation recorded", report)
}

func (h *ProctorHandler) listViolations(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	violations, err := h.service.ListViolations(c.Context(), studentID, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "violations retrieved", violations)
}

func (h *ProctorHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrSessionLocked):
		return utils.SendError(c, fiber.StatusForbidden, "session is locked")
	case errors.Is(err, service.ErrAssignmentNotStarted):
		return utils.SendError(c, fiber.StatusForbidden, "assignment has not started yet")
	case errors.Is(err, service.ErrAssignmentEnded):
		return utils.SendError(c, fiber.StatusForbidden, "assignment has ended")
	case errors.Is(err, service.ErrAssignmentInactive):
		return utils.SendError(c, fiber.StatusForbidden, "assignment is not active")
	case errors.Is(err, service.ErrSessionAlreadyEnded):
		return utils.SendError(c, fiber.StatusBadRequest, "session has already ended")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// ProctorAdminHandler manages the admin-facing proctoring endpoints,
// including the live SSE monitoring feed.
type ProctorAdminHandler struct {
	service   service.ProctorService
	dashboard service.DashboardService
	feed      service.ProctorFeedService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewProctorAdminHandler builds an admin proctor handler instance.
func NewProctorAdminHandler(proctor service.ProctorService, dashboard service.DashboardService, feed service.ProctorFeedService, logger zerolog.Logger, keepAlive time.Duration) *ProctorAdminHandler {
	return &ProctorAdminHandler{
		service:   proctor,
		dashboard: dashboard,
		feed:      feed,
		logger:    logger.With().Str("component", "proctor_admin_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register attaches the routes to the provided router group.
func (h *ProctorAdminHandler) Register(router fiber.Router) {
	router.Get("/assignments/:assignmentId/overview", h.overview)
	router.Get("/assignments/:assignmentId/sessions", h.activeSessions)
	router.Get("/assignments/:assignmentId/feed", h.feedStream)
	router.Post("/sessions/:studentId/:assignmentId/lock", h.lockSession)
	router.Post("/sessions/:studentId/:assignmentId/unlock", h.unlockSession)
	router.Delete("/sessions/:studentId/:assignmentId/violations", h.clearViolations)
}

func (h *ProctorAdminHandler) overview(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	overview, err := h.dashboard.ProctorOverview(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "overview retrieved", overview)
}

func (h *ProctorAdminHandler) activeSessions(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	sessions, err := h.service.ListActiveSessions(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "active sessions retrieved", sessions)
}

func (h *ProctorAdminHandler) feedStream(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	stream, cleanup := h.feed.Subscribe(assignmentID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeProctorEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write proctor event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write proctor keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *ProctorAdminHandler) lockSession(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var payload dto.SessionLockRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	session, err := h.service.LockSession(c.Context(), studentID, assignmentID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session locked", session)
}

func (h *ProctorAdminHandler) unlockSession(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	session, err := h.service.UnlockSession(c.Context(), studentID, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session unlocked", session)
}

func (h *ProctorAdminHandler) clearViolations(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	cleared, err := h.service.ClearViolations(c.Context(), studentID, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "violations cleared", cleared)
}

func (h *ProctorAdminHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrSessionNotLocked):
		return utils.SendError(c, fiber.StatusBadRequest, "session is not locked")
	case errors.Is(err, service.ErrSessionAlreadyLocked):
		return utils.SendError(c, fiber.StatusBadRequest, "session is already locked")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func writeProctorEvent(w *bufio.Writer, event service.ProctorEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
