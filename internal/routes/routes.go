package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ananth-NQI/intake-backend/internal/config"
	"github.com/Ananth-NQI/intake-backend/internal/handlers"
	"github.com/Ananth-NQI/intake-backend/internal/middleware"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// Dependencies are the collaborators the HTTP layer needs
type Dependencies struct {
	Config        *config.Config
	Version       string
	Store         storage.Store
	Conversations handlers.InboundProcessor
	Operators     handlers.Operator
	Gatherer      prometheus.Gatherer
	// Leads and Reconciler are optional; the lead routes are mounted when both are set
	Leads      handlers.PendingLeadLister
	Reconciler handlers.LeadReconciler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	whatsapp := handlers.NewWhatsAppHandler(deps.Conversations, cfg.CloudAPI.VerifyToken, nil)
	health := handlers.NewHealthHandler(deps.Version, cfg.Channel.Provider)
	admin := handlers.NewAdminHandler(deps.Store, deps.Operators, nil)
	support := handlers.NewSupportHandler(deps.Store)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Intake Backend!",
			"version": deps.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"webhook": "/webhook/whatsapp",
				"twilio":  "/webhook/twilio",
				"admin":   "/admin",
			},
		})
	})

	app.Get("/health", health.Check)
	if deps.Gatherer != nil {
		app.Get("/metrics", handlers.Metrics(deps.Gatherer))
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// WhatsApp Cloud API
	webhooks.Get("/whatsapp", whatsapp.VerifyWebhook)
	webhooks.Post("/whatsapp", whatsapp.HandleCloudWebhook)

	// Twilio - ENVIRONMENT-AWARE VALIDATION
	if cfg.WebhookValidation() {
		webhooks.Post("/twilio", middleware.ValidateTwilioSignature(cfg.Twilio.AuthToken, cfg.PublicURL), whatsapp.HandleTwilioWebhook)
	} else {
		// Development: skip validation for ngrok
		slog.Warn("⚠️  Twilio webhook validation DISABLED")
		webhooks.Post("/twilio", whatsapp.HandleTwilioWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if cfg.IsDevelopment() {
		app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	adminGroup := app.Group("/admin", middleware.RequireAdminToken(cfg.AdminToken))
	adminGroup.Get("/sessions", admin.ListSessions)
	adminGroup.Get("/sessions/:id", admin.GetSession)
	adminGroup.Get("/sessions/:id/messages", admin.GetTranscript)
	adminGroup.Post("/sessions/:id/messages", admin.SendMessage)
	adminGroup.Post("/sessions/:id/takeover", admin.Takeover)
	adminGroup.Post("/sessions/:id/release", admin.Release)
	adminGroup.Post("/sessions/:id/close", admin.CloseSession)
	adminGroup.Get("/tickets", support.GetUserTickets)

	if deps.Leads != nil && deps.Reconciler != nil {
		leads := handlers.NewLeadHandler(deps.Leads, deps.Reconciler, nil)
		adminGroup.Get("/leads", leads.ListPending)
		adminGroup.Post("/leads/reconcile", leads.Reconcile)
	}
}
