package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/login-service/internal/api/http/handlers"
	"github.com/spec-kit/login-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Gate   *auth.RequestGate
}

// RegisterRoutes wires HTTP routes. The request gate runs for every request;
// its bypass list exempts the public paths (auth endpoints, health, docs).
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/register/wechat", cfg.Auth.RegisterWechat)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh-token", cfg.Auth.RefreshToken)
	authGroup.Get("/validate-token", cfg.Auth.ValidateToken)

	app.Get("/api/me", cfg.Auth.Me)
}
