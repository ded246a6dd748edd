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

// ProblemHandler manages problem and test case endpoints.
type ProblemHandler struct {
	service service.ProblemService
	logger  zerolog.Logger
}

// NewProblemHandler builds a problem handler instance.
func NewProblemHandler(service service.ProblemService, logger zerolog.Logger) *ProblemHandler {
	return &ProblemHandler{
		service: service,
		logger:  logger.With().Str("component", "problem_handler").Logger(),
	}
}

// Register attaches the read routes to the provided router group.
func (h *ProblemHandler) Register(router fiber.Router) {
	router.Get("/assignment/:assignmentId", h.listByAssignment)
	router.Get("/:id", h.get)
}

// RegisterAdmin attaches the management routes to the provided router group.
func (h *ProblemHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/test-cases", h.addTestCase)
	router.Delete("/:id/test-cases/:testCaseId", h.deleteTestCase)
	router.Get("/:id/gradability", h.gradability)
}

func (h *ProblemHandler) list(c *fiber.Ctx) error {
	problems, err := h.service.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problems retrieved", problems)
}

func (h *ProblemHandler) listByAssignment(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	forStudent := userRoleFromContext(c) != models.RoleAdmin
	problems, err := h.service.ListByAssignment(c.Context(), assignmentID, forStudent)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problems retrieved", problems)
}

func (h *ProblemHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}

	forStudent := userRoleFromContext(c) != models.RoleAdmin
	problem, err := h.service.Get(c.Context(), id, forStudent)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problem retrieved", problem)
}

func (h *ProblemHandler) create(c *fiber.Ctx) error {
	var payload dto.ProblemCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	problem, err := h.service.Create(c.Context(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "problem created", problem)
}

func (h *ProblemHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}

	var payload dto.ProblemUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	problem, err := h.service.Update(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problem updated", problem)
}

func (h *ProblemHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "problem deleted", nil)
}

func (h *ProblemHandler) addTestCase(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}

	var payload dto.TestCaseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	testCase, err := h.service.AddTestCase(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "test case created", testCase)
}

func (h *ProblemHandler) deleteTestCase(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}
	testCaseID, err := parseUintParam(c, "testCaseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test case id")
	}

	if err := h.service.DeleteTestCase(c.Context(), id, testCaseID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "test case deleted", nil)
}

func (h *ProblemHandler) gradability(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid problem id")
	}

	report, err := h.service.CheckGradability(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "gradability checked", report)
}

func (h *ProblemHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "problem not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrTestCaseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "test case not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
