package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kawal234/HelpDeskMIni/internal/api/http/handlers"
	"github.com/kawal234/HelpDeskMIni/internal/auth"
	"github.com/kawal234/HelpDeskMIni/internal/config"
	"github.com/kawal234/HelpDeskMIni/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimits     RateLimits
}

// RateLimits carries the per-scope limiter middlewares, nil when rate
// limiting is disabled.
type RateLimits struct {
	General      fiber.Handler
	Auth         fiber.Handler
	TicketCreate fiber.Handler
}

// NewRateLimits builds per-scope middlewares from the limiter.
func NewRateLimits(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) RateLimits {
	return RateLimits{
		General:      limiter.Handle("general", cfg.GeneralMax, time.Duration(cfg.GeneralWindowSec)*time.Second),
		Auth:         limiter.Handle("auth", cfg.AuthMax, time.Duration(cfg.AuthWindowSec)*time.Second),
		TicketCreate: limiter.Handle("ticket_create", cfg.TicketCreateMax, time.Duration(cfg.TicketCreateWindSec)*time.Second),
	}
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")
	if cfg.RateLimits.General != nil {
		api.Use(cfg.RateLimits.General)
	}

	authGroup := api.Group("/auth")
	if cfg.RateLimits.Auth != nil {
		authGroup.Use(cfg.RateLimits.Auth)
	}
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/profile", cfg.AuthMiddleware.Handle, cfg.Auth.Profile)
	authGroup.Put("/profile", cfg.AuthMiddleware.Handle, cfg.Auth.UpdateProfile)
	authGroup.Put("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	if cfg.RateLimits.TicketCreate != nil {
		tickets.Post("/", cfg.RateLimits.TicketCreate, cfg.Tickets.CreateTicket)
	} else {
		tickets.Post("/", cfg.Tickets.CreateTicket)
	}
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/search", cfg.Tickets.SearchTickets)
	tickets.Get("/sla-breached", cfg.Tickets.ListSLABreached)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.GetHistory)

	users := api.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	users.Get("/", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id/role", cfg.Users.UpdateRole)
	users.Delete("/:id", cfg.Users.Delete)
}
