package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/services"
)

// InboundProcessor runs one inbound message through the conversation engine
type InboundProcessor interface {
	HandleInbound(ctx context.Context, msg models.InboundMessage) (*services.TurnResult, error)
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	conversations InboundProcessor
	verifyToken   string
	logger        *slog.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(conversations InboundProcessor, verifyToken string, logger *slog.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WhatsAppHandler{
		conversations: conversations,
		verifyToken:   verifyToken,
		logger:        logger,
	}
}

// VerifyWebhook answers the Cloud API subscription challenge
func (h *WhatsAppHandler) VerifyWebhook(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Verification failed",
		})
	}
	return c.SendString(challenge)
}

// HandleCloudWebhook processes a WhatsApp Cloud API notification.
// Status updates and non-text messages are acknowledged without a reply.
func (h *WhatsAppHandler) HandleCloudWebhook(c *fiber.Ctx) error {
	var payload CloudWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("error parsing webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if err := h.process(c.UserContext(), m.inbound()); err != nil {
					return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
						"error": "Message not processed",
					})
				}
			}
		}
	}

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// HandleTwilioWebhook processes a Twilio WhatsApp webhook
func (h *WhatsAppHandler) HandleTwilioWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("error parsing webhook", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// Status callbacks carry no From/Body pair
	if payload.From == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.process(c.UserContext(), payload.inbound(time.Now())); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Message not processed",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

// HandleTestWebhook runs a message through the engine and returns the reply (development only)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if payload.From == "" || payload.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from and message are required",
		})
	}

	h.logger.Info("🧪 test message", "from", payload.From, "body", payload.Message)

	result, err := h.conversations.HandleInbound(c.UserContext(), models.InboundMessage{
		From:             stripWhatsAppPrefix(payload.From),
		Type:             "text",
		Body:             payload.Message,
		ChannelMessageID: payload.MessageID,
		Timestamp:        time.Now(),
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

func (h *WhatsAppHandler) process(ctx context.Context, msg models.InboundMessage) error {
	h.logger.Info("📱 WhatsApp message", "from", msg.From, "type", msg.Type, "id", msg.ChannelMessageID)

	result, err := h.conversations.HandleInbound(ctx, msg)
	if err != nil {
		h.logger.Error("❌ inbound message not processed", "from", msg.From, "error", err)
		return err
	}
	if result.Duplicate {
		h.logger.Debug("redelivered message acknowledged", "id", msg.ChannelMessageID)
	}
	return nil
}

// CloudWebhookPayload is the notification envelope posted by the WhatsApp Cloud API
type CloudWebhookPayload struct {
	Object string       `json:"object"`
	Entry  []CloudEntry `json:"entry"`
}

type CloudEntry struct {
	ID      string        `json:"id"`
	Changes []CloudChange `json:"changes"`
}

type CloudChange struct {
	Field string     `json:"field"`
	Value CloudValue `json:"value"`
}

type CloudValue struct {
	MessagingProduct string                `json:"messaging_product"`
	Messages         []CloudInboundMessage `json:"messages"`
}

type CloudInboundMessage struct {
	From        string            `json:"from"`
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Type        string            `json:"type"`
	Text        *CloudText        `json:"text,omitempty"`
	Interactive *CloudInteractive `json:"interactive,omitempty"`
	Button      *CloudButton      `json:"button,omitempty"`
}

type CloudText struct {
	Body string `json:"body"`
}

type CloudInteractive struct {
	Type        string      `json:"type"`
	ButtonReply *CloudReply `json:"button_reply,omitempty"`
	ListReply   *CloudReply `json:"list_reply,omitempty"`
}

type CloudReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CloudButton is a quick-reply tap on a template message
type CloudButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// inbound converts the Cloud API message. Button and list taps become text carrying the option id.
func (m CloudInboundMessage) inbound() models.InboundMessage {
	msg := models.InboundMessage{
		From:             m.From,
		Type:             m.Type,
		ChannelMessageID: m.ID,
		Timestamp:        parseUnix(m.Timestamp),
	}

	switch {
	case m.Type == "text" && m.Text != nil:
		msg.Body = m.Text.Body
	case m.Type == "interactive" && m.Interactive != nil:
		if r := m.Interactive.ButtonReply; r != nil {
			msg.Type, msg.Body = "text", r.ID
		} else if r := m.Interactive.ListReply; r != nil {
			msg.Type, msg.Body = "text", r.ID
		}
	case m.Type == "button" && m.Button != nil:
		msg.Type = "text"
		msg.Body = m.Button.Payload
		if msg.Body == "" {
			msg.Body = m.Button.Text
		}
	}
	return msg
}

func parseUnix(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0).UTC()
}

// TwilioWebhookPayload represents incoming webhook data from Twilio
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"`
	To            string `form:"To"`
	Body          string `form:"Body"`
	NumMedia      string `form:"NumMedia"`
	ButtonPayload string `form:"ButtonPayload"`
	ButtonText    string `form:"ButtonText"`
	ProfileName   string `form:"ProfileName"`
}

func (p TwilioWebhookPayload) inbound(at time.Time) models.InboundMessage {
	msg := models.InboundMessage{
		From:             stripWhatsAppPrefix(p.From),
		Type:             "text",
		Body:             p.Body,
		ChannelMessageID: p.MessageSid,
		Timestamp:        at,
	}
	if p.ButtonPayload != "" {
		msg.Body = p.ButtonPayload
	}
	if n, _ := strconv.Atoi(p.NumMedia); n > 0 && strings.TrimSpace(msg.Body) == "" {
		msg.Type = "media"
	}
	return msg
}

// TestWebhookPayload for testing without Twilio
type TestWebhookPayload struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

func stripWhatsAppPrefix(from string) string {
	return strings.TrimPrefix(from, "whatsapp:")
}
