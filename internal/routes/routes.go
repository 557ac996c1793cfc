package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/lycapay-backend/internal/handlers"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/middleware"
)

// Options configures route registration.
type Options struct {
	ValidateWebhook bool
	AuthToken       string
	PublicURL       string
	EnableTestRoute bool
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, whatsapp *handlers.WhatsAppHandler, health *handlers.HealthHandler, opts Options) {
	log := logging.WithComponent("routes")

	app.Get("/", health.Root)
	app.Get("/health", health.Check)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	if opts.ValidateWebhook {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(opts.AuthToken, opts.PublicURL), whatsapp.HandleWebhook)
	} else {
		log.Warn("⚠️  WhatsApp webhook signature validation DISABLED")
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
	}

	// ========== TEST ROUTES ==========
	if opts.EnableTestRoute {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}
}
