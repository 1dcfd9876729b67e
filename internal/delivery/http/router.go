package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/fleet-tracker/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, fleet *service.FleetService, repo service.DataRepository, subscribers SubscriberCounter) {
	handler := NewHandler(fleet, repo, subscribers)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Live positions
		api.Get("/positions", handler.GetPositions)
		api.Get("/positions/:id", handler.GetPosition)
		api.Delete("/positions/:id", handler.DeletePosition)

		// Location push
		api.Post("/locations/snapshot", handler.PostSnapshot)
		api.Post("/locations/report", handler.PostReport)

		// Labels and history
		api.Get("/labels", handler.GetLabel)
		api.Get("/tracks/:id", handler.GetTrack)
	}
}
