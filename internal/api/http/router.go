package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Tickets *handlers.TicketsHandler
	Agent   *handlers.AgentHandler
	Admin   *handlers.AdminHandler
}

// RegisterRoutes wires HTTP routes. Session resolution must already be
// registered as a global middleware.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Get("/", cfg.Auth.Home)
	app.Get("/register", cfg.Auth.RegisterForm)
	app.Post("/register", cfg.Auth.Register)
	app.Get("/login", cfg.Auth.LoginForm)
	app.Post("/login", cfg.Auth.Login)
	app.Get("/logout", cfg.Auth.Logout)

	loggedIn := auth.RequireAuthenticated()
	app.Get("/dashboard", loggedIn, cfg.Tickets.Dashboard)
	app.Get("/create-ticket", loggedIn, cfg.Tickets.CreateForm)
	app.Post("/create-ticket", loggedIn, cfg.Tickets.Create)
	app.Get("/ticket/:id", loggedIn, cfg.Tickets.Detail)
	app.Post("/ticket/:id", loggedIn, cfg.Tickets.Comment)
	app.Get("/ticket/:id/status/:status", loggedIn, cfg.Tickets.ChangeStatus)
	app.Post("/ticket/:id/rate", loggedIn, cfg.Tickets.Rate)
	app.Get("/attachment/:id/download", loggedIn, cfg.Tickets.DownloadAttachment)

	agent := app.Group("/agent", auth.RequireRole(domain.RoleAgent))
	agent.Get("/dashboard", cfg.Agent.Dashboard)
	agent.Get("/ticket/:id/escalate", cfg.Agent.Escalate)

	admin := app.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/", cfg.Admin.Panel)
	admin.Get("/user/:id/role/:role", cfg.Admin.ChangeRole)
	admin.Get("/add-agent", cfg.Admin.AddAgentForm)
	admin.Post("/add-agent", cfg.Admin.AddAgent)
	admin.Post("/ticket/:id/assign", cfg.Admin.Assign)
	admin.Get("/ticket/:id/take", cfg.Admin.TakeEscalated)
	admin.Get("/export", cfg.Admin.Export)
	admin.Get("/charts/data", cfg.Admin.ChartsData)
}
