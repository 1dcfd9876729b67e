package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/fleet-tracker/internal/domain"
	"github.com/smartcity/fleet-tracker/internal/service"
	"github.com/smartcity/fleet-tracker/internal/source"
)

// SubscriberCounter reports how many stream clients follow a topic
type SubscriberCounter interface {
	ClientCount(topic string) int
}

// Handler contains all HTTP handlers
type Handler struct {
	fleet       *service.FleetService
	repo        service.DataRepository
	subscribers SubscriberCounter
}

// NewHandler creates a new handler. subscribers may be nil.
func NewHandler(fleet *service.FleetService, repo service.DataRepository, subscribers SubscriberCounter) *Handler {
	return &Handler{
		fleet:       fleet,
		repo:        repo,
		subscribers: subscribers,
	}
}

// reportRequest is the body of a single report; timestamp may be omitted
type reportRequest struct {
	EntityID  domain.EntityID `json:"entity_id"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Timestamp *int64          `json:"timestamp"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "ok"
	if h.repo == nil {
		database = "disabled"
	} else if err := h.repo.Health(c.UserContext()); err != nil {
		database = "unavailable"
	}

	subscribers := 0
	if h.subscribers != nil {
		subscribers = h.subscribers.ClientCount(service.FleetTopic)
	}

	return c.JSON(fiber.Map{
		"status":      "ok",
		"service":     "fleet-tracker",
		"version":     "1.0.0",
		"database":    database,
		"tracked":     h.fleet.TrackedCount(),
		"subscribers": subscribers,
		"depot": fiber.Map{
			"latitude":  domain.DepotLat,
			"longitude": domain.DepotLng,
		},
	})
}

// GetPositions returns the latest update of every live entity
func (h *Handler) GetPositions(c *fiber.Ctx) error {
	positions := h.fleet.Positions()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    positions,
		"count":   len(positions),
	})
}

// GetPosition returns the latest update of a single entity
func (h *Handler) GetPosition(c *fiber.Ctx) error {
	pos, err := h.fleet.Position(domain.EntityID(c.Params("id")))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    pos,
	})
}

// DeletePosition stops tracking an entity
func (h *Handler) DeletePosition(c *fiber.Ctx) error {
	id := domain.EntityID(c.Params("id"))
	if !h.fleet.Drop(id) {
		return domain.ErrEntityNotFound
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PostSnapshot applies a full users snapshot
func (h *Handler) PostSnapshot(c *fiber.Ctx) error {
	snap, err := source.DecodeSnapshot(c.Body(), time.Now())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid snapshot body")
	}

	result := h.fleet.ApplySnapshot(c.UserContext(), snap)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// PostReport ingests a single location report
func (h *Handler) PostReport(c *fiber.Ctx) error {
	var req reportRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	report := domain.LocationReport{
		EntityID:        req.EntityID,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		TimestampMillis: time.Now().UnixMilli(),
	}
	if req.Timestamp != nil {
		report.TimestampMillis = *req.Timestamp
	}

	update, err := h.fleet.HandleReport(c.UserContext(), report)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    update,
	})
}

// GetLabel resolves a human-readable label for a coordinate
func (h *Handler) GetLabel(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lng must be a number")
	}

	label, err := h.fleet.ResolveLabel(c.UserContext(), lat, lng)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"latitude":  lat,
			"longitude": lng,
			"label":     label,
		},
	})
}

// GetTrack returns the persisted history of an entity within a time range
func (h *Handler) GetTrack(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	if hours < 1 || hours > 720 { // max 30 days
		hours = 24
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	points, err := h.fleet.Track(c.UserContext(), domain.EntityID(c.Params("id")), from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch track history")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"data":        points,
		"count":       len(points),
		"distance_km": service.TrackDistanceKm(points),
	})
}

// ErrorHandler renders every error as JSON, mapping domain errors to status codes
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.Is(err, domain.ErrInvalidReport), errors.Is(err, domain.ErrInvalidCoordinates):
		code = fiber.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrEntityNotFound):
		code = fiber.StatusNotFound
		message = err.Error()
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
