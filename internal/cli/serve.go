package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/intake-backend/internal/jobs"
	"github.com/Ananth-NQI/intake-backend/internal/logging"
	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
	"github.com/Ananth-NQI/intake-backend/internal/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and admin HTTP server",
	Long: `Start the HTTP server with the WhatsApp webhooks, the admin API and the
background jobs (lead reconciliation and idle session cleanup).

Examples:
  intake-backend serve
  intake-backend serve --config config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.Setup(cfg.Environment, cfg.LogLevel)

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	bank, err := loadBank(cfg.QuestionsFile)
	if err != nil {
		return err
	}

	gateway, err := newGateway(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize %s gateway: %w", cfg.Channel.Provider, err)
	}
	log.Info("✅ Outbound gateway initialized", "gateway", gateway.Name())

	leads, err := queue.Open(cfg.Lead.QueueDir)
	if err != nil {
		return err
	}
	defer leads.Close()

	registry := prometheus.NewRegistry()
	rec := metrics.NewRecorder(registry)
	notifier := newNotifier(cfg, log)

	eng, err := buildEngine(cfg, store, bank, gateway, notifier, leads, rec, log)
	if err != nil {
		return err
	}

	reconcileJob := jobs.NewReconcileJob(leads, notifier, cfg.Lead.ReconcileInterval, log)
	reconcileJob.Start()
	inactivityJob := jobs.NewInactivityJob(store, cfg.SessionIdleTimeout, log)
	inactivityJob.Start()

	log.Info("✅ All services initialized and scheduled jobs started")

	app := fiber.New(fiber.Config{
		AppName:               "Intake Backend " + appVersion,
		DisableStartupMessage: !cfg.IsDevelopment(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Dependencies{
		Config:        cfg,
		Version:       appVersion,
		Store:         store,
		Conversations: eng.conversations,
		Operators:     eng.operators,
		Gatherer:      rec.Gatherer(),
		Leads:         leads,
		Reconciler:    reconcileJob,
	})

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("🛑 Gracefully shutting down...")
		log.Info("⏹️  Stopping background jobs...")
		reconcileJob.Stop()
		inactivityJob.Stop()
		log.Info("⏹️  Shutting down server...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("========================================")
	log.Info("🚀 Intake Backend starting", "port", cfg.Port, "version", appVersion)
	log.Info("📊 Storage", "type", storageType(cfg.UseMemoryStore))
	log.Info("🌍 Environment", "name", cfg.Environment)
	log.Info("📱 WhatsApp", "provider", cfg.Channel.Provider, "questions", bank.Len())
	log.Info("========================================")

	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func storageType(memory bool) string {
	if memory {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}
