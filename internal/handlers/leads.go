package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/intake-backend/internal/jobs"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
)

// PendingLeadLister lists leads waiting for re-delivery
type PendingLeadLister interface {
	List(ctx context.Context) ([]queue.PendingLead, error)
}

// LeadReconciler runs one re-delivery pass over the pending leads
type LeadReconciler interface {
	RunOnce(ctx context.Context) (jobs.ReconcileStats, error)
}

// LeadHandler exposes the pending lead queue of the running server
type LeadHandler struct {
	leads      PendingLeadLister
	reconciler LeadReconciler
	logger     *slog.Logger
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leads PendingLeadLister, reconciler LeadReconciler, logger *slog.Logger) *LeadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadHandler{leads: leads, reconciler: reconciler, logger: logger}
}

// ListPending lists queued leads
func (h *LeadHandler) ListPending(c *fiber.Ctx) error {
	pending, err := h.leads.List(c.UserContext())
	if err != nil {
		h.logger.Error("failed to list pending leads", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch pending leads",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"leads":   pending,
		"count":   len(pending),
	})
}

// Reconcile delivers every queued lead once
func (h *LeadHandler) Reconcile(c *fiber.Ctx) error {
	stats, err := h.reconciler.RunOnce(c.UserContext())
	if err != nil {
		h.logger.Error("❌ lead reconciliation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lead reconciliation failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
	})
}
