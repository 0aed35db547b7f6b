package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-engine/internal/api/http/handlers"
	"github.com/spec-kit/request-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Requests       *handlers.RequestsHandler
	Workers        *handlers.WorkersHandler
	Sweep          *handlers.SweepHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Reads are open to any authenticated role;
// writes require dispatcher or admin; the manual sweep is admin-only.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.AuthMiddleware.Handle)

	requests := api.Group("/requests")
	requests.Get("", cfg.Requests.ListRequests)
	requests.Get("/:id", cfg.Requests.GetRequest)
	requests.Get("/:id/history", cfg.Requests.History)

	write := auth.RequireRole(auth.RoleAdmin, auth.RoleDispatcher)
	requests.Post("", write, cfg.Requests.CreateRequest)
	requests.Post("/:id/transition", write, cfg.Requests.Transition)
	requests.Post("/:id/assign", write, cfg.Requests.Assign)
	requests.Post("/:id/reactivate", write, cfg.Requests.Reactivate)
	requests.Post("/:id/score", write, cfg.Requests.Score)
	requests.Put("/:id/attributes", write, cfg.Requests.UpdateAttributes)

	api.Get("/workers", cfg.Workers.ListWorkers)

	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.Post("/sweep", cfg.Sweep.Run)
}
