package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version     string
	Environment string
	LycaEnv     string

	store            storage.Store
	redis            *redis.Client
	twilioConfigured bool
}

// HealthOptions collects the dependencies probed by the health endpoints.
type HealthOptions struct {
	Version          string
	Environment      string
	LycaEnv          string
	Store            storage.Store
	Redis            *redis.Client // nil when dedup runs in memory
	TwilioConfigured bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(opts HealthOptions) *HealthHandler {
	return &HealthHandler{
		Version:          opts.Version,
		Environment:      opts.Environment,
		LycaEnv:          opts.LycaEnv,
		store:            opts.Store,
		redis:            opts.Redis,
		twilioConfigured: opts.TwilioConfigured,
	}
}

// Root returns the service banner.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":     "LycaPay WhatsApp Bot",
		"version":     h.Version,
		"status":      "running",
		"environment": h.Environment,
		"lyca_api":    h.LycaEnv,
		"endpoints": fiber.Map{
			"health":        "/health",
			"webhook":       "/webhook/whatsapp",
			"test_whatsapp": "/test/whatsapp",
		},
	})
}

// Check reports dependency health; 503 when the database is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	statusCode := fiber.StatusOK

	dbHealthy := h.store != nil && h.store.Ping(ctx) == nil
	if !dbHealthy {
		status = "unhealthy"
		statusCode = fiber.StatusServiceUnavailable
	}

	services := fiber.Map{
		"database": dbHealthy,
		"twilio":   h.twilioConfigured,
	}
	if h.redis != nil {
		services["redis"] = h.redis.Ping(ctx).Err() == nil
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":   status,
		"version":  h.Version,
		"services": services,
	})
}
