package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grievance-desk/sla-service/internal/api/http/handlers"
	"github.com/grievance-desk/sla-service/internal/auth"
	"github.com/grievance-desk/sla-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Issues          *handlers.IssuesHandler
	Sla             *handlers.SlaHandler
	AuthMiddleware  *auth.AuthMiddleware
	MetricsRegistry *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsRegistry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	issues := api.Group("/issues")
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Get("/:id/sla", cfg.Sla.GetIssueSla)
	issues.Get("/:id/history", auth.RequireStaffRole(), cfg.Issues.History)
	issues.Patch("/:id/status", auth.RequireStaffRole(), cfg.Issues.UpdateStatus)
	issues.Patch("/:id/priority", auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin), cfg.Issues.UpdatePriority)

	api.Get("/analytics/sla", auth.RequireStaffRole(), cfg.Sla.Summary)

	admin := api.Group("/admin", auth.RequireStaffRole(domain.StaffRoleAdmin))
	admin.Post("/sla/recompute", cfg.Sla.Recompute)
}
