package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/guild-ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/guild-ticket-bot/internal/auth"
	"github.com/spec-kit/guild-ticket-bot/internal/domain"
	"github.com/spec-kit/guild-ticket-bot/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tenants        *handlers.TenantsHandler
	Sweeps         *handlers.SweepsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	app.Post("/auth/token", cfg.Auth.IssueToken)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	anyRole := auth.RequireRole(domain.OperatorRoleAdmin, domain.OperatorRoleViewer)
	adminOnly := auth.RequireRole(domain.OperatorRoleAdmin)

	tenants := admin.Group("/tenants")
	tenants.Get("/:id", anyRole, cfg.Tenants.Get)
	tenants.Get("/:id/tickets", anyRole, cfg.Tenants.ListTickets)
	tenants.Get("/:id/history", anyRole, cfg.Tenants.History)
	tenants.Put("/:id", adminOnly, cfg.Tenants.Upsert)
	tenants.Post("/:id/reload", adminOnly, cfg.Tenants.Reload)
	tenants.Delete("/:id", adminOnly, cfg.Tenants.Delete)

	admin.Post("/sweeps/:name", adminOnly, cfg.Sweeps.Run)
}
