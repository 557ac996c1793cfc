package handlers

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/services"
)

// MessageProcessor turns one inbound message into a reply.
type MessageProcessor interface {
	HandleMessage(ctx context.Context, sender, body, messageID string) (string, error)
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	bot      MessageProcessor
	sender   services.Sender
	dedup    services.Deduplicator
	validate *validator.Validate
	log      *logrus.Entry
}

// NewWhatsAppHandler creates a new WhatsApp handler. dedup may be nil.
func NewWhatsAppHandler(bot MessageProcessor, sender services.Sender, dedup services.Deduplicator) *WhatsAppHandler {
	return &WhatsAppHandler{
		bot:      bot,
		sender:   sender,
		dedup:    dedup,
		validate: validator.New(),
		log:      logging.WithComponent("webhook"),
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"` // whatsapp:+256712345678
	To          string `form:"To"`
	Body        string `form:"Body"`
	ProfileName string `form:"ProfileName"`
	NumMedia    string `form:"NumMedia"`
}

// TestWebhookPayload drives the bot without Twilio.
type TestWebhookPayload struct {
	From    string `json:"from" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// HandleWebhook processes incoming WhatsApp messages. Any parsed payload is
// acknowledged with 200, including ones whose processing failed.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.log.WithError(err).Warn("Error parsing webhook")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// status callbacks carry no body
	if strings.TrimSpace(payload.Body) == "" || payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	entry := h.log.WithFields(logrus.Fields{"from": payload.From, "message_id": payload.MessageSid})
	ctx := c.UserContext()

	if h.dedup != nil {
		seen, err := h.dedup.Seen(ctx, payload.MessageSid)
		if err != nil {
			entry.WithError(err).Warn("Dedup check failed, processing anyway")
		} else if seen {
			entry.Info("Duplicate webhook delivery ignored")
			return c.SendStatus(fiber.StatusOK)
		}
	}

	reply, err := h.bot.HandleMessage(ctx, payload.From, payload.Body, payload.MessageSid)
	if err != nil {
		entry.WithError(err).Error("Error processing message")
	}

	if reply != "" {
		to := strings.TrimPrefix(payload.From, "whatsapp:")
		if err := h.sender.SendWhatsAppMessage(to, reply); err != nil {
			entry.WithError(err).Error("❌ Failed to send WhatsApp response")
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

// HandleTestWebhook processes test WhatsApp messages and returns the reply inline.
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if err := h.validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message are required",
		})
	}

	h.log.WithField("from", payload.From).Info("🧪 Test webhook received")

	response, err := h.bot.HandleMessage(c.UserContext(), payload.From, payload.Message, "")
	if err != nil {
		h.log.WithError(err).Error("Error processing test message")
	}

	return c.JSON(fiber.Map{
		"success":  err == nil,
		"response": response,
	})
}
