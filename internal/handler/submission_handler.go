package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codecourt/codecourt-api/internal/dto"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/service"
	"github.com/codecourt/codecourt-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.GradingService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the student routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.listMine)
	router.Get("/:id", h.get)
}

// RegisterAdmin attaches the admin routes to the provided router group.
func (h *SubmissionHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/assignments/:assignmentId/submissions", h.listByAssignment)
	router.Get("/submissions/:id", h.get)
	router.Post("/submissions/:id/rerun", h.rerun)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Submit(c.Context(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission queued", submission)
}

func (h *SubmissionHandler) listMine(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	filter, err := parseSubmissionFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByStudent(c.Context(), studentID, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(c.Context(), id, userIDFromContext(c), userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) listByAssignment(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	filter, err := parseSubmissionFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByAssignment(c.Context(), assignmentID, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) rerun(c *fiber.Ctx) error {
	if userRoleFromContext(c) != models.RoleAdmin {
		return utils.SendError(c, fiber.StatusForbidden, "admin access required")
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Rerun(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission queued for regrading", submission)
}

func parseSubmissionFilter(c *fiber.Ctx) (dto.SubmissionListFilter, error) {
	var filter dto.SubmissionListFilter

	assignmentID, err := parseQueryUint(c, "assignment_id")
	if err != nil {
		return filter, errors.New("invalid assignment id")
	}
	filter.AssignmentID = assignmentID

	problemID, err := parseQueryUint(c, "problem_id")
	if err != nil {
		return filter, errors.New("invalid problem id")
	}
	filter.ProblemID = problemID

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return filter, errors.New("invalid limit")
	}
	filter.Limit = limit
	filter.Status = c.Query("status")

	return filter, nil
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "problem not found")
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusForbidden, "no active session for assignment")
	case errors.Is(err, service.ErrSessionLocked):
		return utils.SendError(c, fiber.StatusForbidden, "session is locked")
	case errors.Is(err, service.ErrAssignmentEnded):
		return utils.SendError(c, fiber.StatusForbidden, "assignment has ended")
	case errors.Is(err, service.ErrProblemNotInAssignment):
		return utils.SendError(c, fiber.StatusBadRequest, "problem does not belong to assignment")
	case errors.Is(err, service.ErrAlreadySolved):
		return utils.SendError(c, fiber.StatusForbidden, "problem already solved")
	case errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "forbidden")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
