package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/educlass-api/internal/config"
	"github.com/noah-isme/educlass-api/internal/handler"
	"github.com/noah-isme/educlass-api/internal/middleware"
	"github.com/noah-isme/educlass-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	NavigationHandler  *handler.NavigationHandler
	BatchHandler       *handler.BatchHandler
	DashboardHandler   *handler.DashboardHandler
	LiveSessionHandler *handler.LiveSessionHandler
	Identities         middleware.IdentityResolver
	JWTMiddleware      fiber.Handler
	HealthProbes       map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	api.Get("/metrics", observability.MetricsHandler())

	devices := api.Group("/devices/:device", middleware.DeviceScope())
	if deps.NavigationHandler != nil {
		deps.NavigationHandler.Register(devices)
	}

	// Guards go on each route so the navigation routes sharing the prefix stay open.
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	guard := []fiber.Handler{jwtMiddleware}
	if deps.Identities != nil {
		guard = append(guard, middleware.DeviceIdentity(deps.Identities))
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(devices, guard...)
	}
	if deps.BatchHandler != nil {
		deps.BatchHandler.Register(devices, guard...)
	}
	if deps.LiveSessionHandler != nil {
		deps.LiveSessionHandler.Register(devices, guard...)
	}
}
