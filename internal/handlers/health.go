package handlers

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Provider string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, provider string) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Provider: provider,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "OK",
		"service":  "Intake Backend",
		"version":  h.Version,
		"provider": h.Provider,
	})
}

// Metrics exposes the Prometheus registry
func Metrics(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
