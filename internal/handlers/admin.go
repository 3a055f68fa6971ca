package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/services"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// Operator is the set of actions an operator can take on a session
type Operator interface {
	Takeover(ctx context.Context, sessionID string) (*models.Session, error)
	Release(ctx context.Context, sessionID string) (*models.Session, error)
	Close(ctx context.Context, sessionID string) (*models.Session, error)
	SendMessage(ctx context.Context, sessionID, body string) error
}

// AdminHandler handles operator dashboard requests
type AdminHandler struct {
	store     storage.Store
	operators Operator
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, operators Operator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		store:     store,
		operators: operators,
		logger:    logger,
	}
}

// ListSessions lists sessions, optionally filtered by phone and status
func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	filter := storage.SessionFilter{
		UserPhone: c.Query("phone"),
		Status:    models.SessionStatus(c.Query("status")),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a non-negative number",
			})
		}
		filter.Limit = limit
	}

	sessions, err := h.store.ListSessions(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession returns one session
func (h *AdminHandler) GetSession(c *fiber.Ctx) error {
	s, err := h.store.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"session": s,
	})
}

// GetTranscript returns the messages exchanged in a session, oldest first
func (h *AdminHandler) GetTranscript(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.store.GetSession(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}

	messages, err := h.store.ListMessages(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
		"count":    len(messages),
	})
}

// Takeover hands the session to a human operator
func (h *AdminHandler) Takeover(c *fiber.Ctx) error {
	s, err := h.operators.Takeover(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "session": s})
}

// Release returns the session to automatic replies
func (h *AdminHandler) Release(c *fiber.Ctx) error {
	s, err := h.operators.Release(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "session": s})
}

// CloseSession ends the session
func (h *AdminHandler) CloseSession(c *fiber.Ctx) error {
	s, err := h.operators.Close(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "session": s})
}

// SendMessage sends an operator message to the session's user
func (h *AdminHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.operators.SendMessage(c.UserContext(), c.Params("id"), req.Body); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Message sent",
	})
}

// fail maps service errors to HTTP responses
func (h *AdminHandler) fail(c *fiber.Ctx, err error) error {
	var gwErr *services.GatewayError
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrSessionNotActive), errors.Is(err, models.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrStaleVersion):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session changed, try again"})
	case errors.As(err, &gwErr):
		h.logger.Error("❌ operator message not delivered", "to", gwErr.To, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Message could not be delivered"})
	default:
		h.logger.Error("admin request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
