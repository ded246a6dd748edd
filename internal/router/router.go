package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codecourt/codecourt-api/internal/config"
	"github.com/codecourt/codecourt-api/internal/handler"
	"github.com/codecourt/codecourt-api/internal/middleware"
	"github.com/codecourt/codecourt-api/internal/models"
	"github.com/codecourt/codecourt-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	AssignmentHandler   *handler.AssignmentHandler
	ProblemHandler      *handler.ProblemHandler
	SubmissionHandler   *handler.SubmissionHandler
	ProctorHandler      *handler.ProctorHandler
	ProctorAdminHandler *handler.ProctorAdminHandler
	DashboardHandler    *handler.DashboardHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth", middleware.RateLimit("auth", 10, time.Minute)))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	if deps.AssignmentHandler != nil {
		assignments := api.Group("/assignments", jwtMiddleware)
		deps.AssignmentHandler.Register(assignments)
		deps.AssignmentHandler.RegisterAdmin(api.Group("/admin/assignments", jwtMiddleware, adminOnly))
	}

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(api.Group("/problems", jwtMiddleware))
		deps.ProblemHandler.RegisterAdmin(api.Group("/admin/problems", jwtMiddleware, adminOnly))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions", jwtMiddleware))
		deps.SubmissionHandler.RegisterAdmin(api.Group("/admin", jwtMiddleware, adminOnly))
	}

	if deps.ProctorHandler != nil {
		// Violation reporting is client-driven and can be chatty.
		deps.ProctorHandler.Register(api.Group("/proctor", jwtMiddleware, middleware.RateLimit("proctor", 120, time.Minute)))
	}

	if deps.ProctorAdminHandler != nil {
		deps.ProctorAdminHandler.Register(api.Group("/admin/proctor", jwtMiddleware, adminOnly))
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(api.Group("/dashboard", jwtMiddleware))
	}
}
