package agent

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/classpad-app/classpad-sync/internal/config"
	"github.com/classpad-app/classpad-sync/internal/observability"
)

// Dependencies groups the handlers the agent surface exposes.
type Dependencies struct {
	StatusHandler *StatusHandler
}

// Register wires the local HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, logger zerolog.Logger, deps Dependencies) {
	registerMiddleware(app, logger)

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", HealthCheck(cfg))

	if deps.StatusHandler != nil {
		deps.StatusHandler.Register(api)
	}

	app.Get("/metrics", observability.MetricsHandler())
}
