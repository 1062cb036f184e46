package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leave-service/internal/api/http/handlers"
	"github.com/spec-kit/leave-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Leave          *handlers.LeaveHandler
	AuthMiddleware *auth.AuthMiddleware
	// Idempotency and LoginLimiter are optional.
	Idempotency  fiber.Handler
	LoginLimiter fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", chain(cfg.LoginLimiter, cfg.Auth.Login)...)

	leave := app.Group("/leave", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	leave.Post("/requests", chain(cfg.Idempotency, cfg.Leave.Submit)...)
	leave.Get("/requests", cfg.Leave.ListAll)
	leave.Get("/requests/:id", cfg.Leave.Get)
	leave.Post("/requests/:id/decision", chain(cfg.Idempotency, cfg.Leave.Decide)...)
	leave.Get("/balance", cfg.Leave.OwnBalance)
	leave.Get("/history", cfg.Leave.History)
	leave.Get("/employees/:employeeId/balance", cfg.Leave.EmployeeBalance)
}

func chain(optional fiber.Handler, handler fiber.Handler) []fiber.Handler {
	if optional == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{optional, handler}
}
