package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

type SupportHandler struct {
	tickets storage.TicketStore
}

func NewSupportHandler(tickets storage.TicketStore) *SupportHandler {
	return &SupportHandler{tickets: tickets}
}

// GetUserTickets lists the support tickets raised from one phone
func (h *SupportHandler) GetUserTickets(c *fiber.Ctx) error {
	phone := c.Query("phone")
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone is required",
		})
	}

	tickets, err := h.tickets.GetSupportTicketsByUser(c.UserContext(), phone)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tickets",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"tickets": tickets,
		"count":   len(tickets),
	})
}
