package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Ananth-NQI/intake-backend/database"
	"github.com/Ananth-NQI/intake-backend/internal/config"
	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/questions"
	"github.com/Ananth-NQI/intake-backend/internal/services"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// openStore returns the configured store and a function releasing its resources
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	if cfg.UseMemoryStore {
		logger.Warn("⚠️  Using in-memory storage (not for production!)")
		return storage.NewMemoryStore(), func() {}, nil
	}

	logger.Info("📦 Connecting to PostgreSQL database...")
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewDatabaseStore(db)
	logger.Info("🔄 Running database migrations...")
	if err := store.AutoMigrate(); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("✅ Using PostgreSQL database storage")

	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store, closeFn, nil
}

// loadBank reads the question catalog file, or returns the built-in questions
func loadBank(path string) (*questions.Bank, error) {
	if path == "" {
		return questions.DefaultBank(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question catalog: %w", err)
	}
	defer f.Close()
	return questions.LoadBank(f)
}

func newGateway(cfg *config.Config, logger *slog.Logger) (services.OutboundGateway, error) {
	switch cfg.Channel.Provider {
	case config.ProviderTwilio:
		contentSIDs := map[string]string{}
		if cfg.Twilio.ButtonContentSID != "" {
			contentSIDs[string(services.InteractiveButton)] = cfg.Twilio.ButtonContentSID
		}
		if cfg.Twilio.ListContentSID != "" {
			contentSIDs[string(services.InteractiveList)] = cfg.Twilio.ListContentSID
		}
		return services.NewTwilioGateway(services.TwilioConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			From:        cfg.Twilio.WhatsAppFrom,
			ContentSIDs: contentSIDs,
		}, logger)
	case config.ProviderCloudAPI:
		return services.NewCloudAPIGateway(services.CloudAPIConfig{
			BaseURL:       cfg.CloudAPI.BaseURL,
			APIVersion:    cfg.CloudAPI.APIVersion,
			PhoneNumberID: cfg.CloudAPI.PhoneNumberID,
			AccessToken:   cfg.CloudAPI.AccessToken,
		}, logger)
	default:
		logger.Warn("⚠️  Outbound messages are only logged")
		return services.NewLogGateway(logger), nil
	}
}

func newNotifier(cfg *config.Config, logger *slog.Logger) services.CompletionNotifier {
	if cfg.Lead.WebhookURL == "" {
		logger.Warn("⚠️  LEAD_WEBHOOK_URL not set - qualified leads are only logged")
		return services.NewLogLeadNotifier(logger)
	}
	return services.NewWebhookLeadNotifier(cfg.Lead.WebhookURL, cfg.Lead.WebhookToken, cfg.Lead.Timeout, logger)
}

func routingRules(cfg config.RoutingConfig) services.RoutingRules {
	return services.NewRoutingRules(services.RoutingConfig{
		HumanTriggers:      cfg.Human,
		SupportTriggers:    cfg.Support,
		HighTicketTriggers: cfg.HighTicket,
		BootstrapKeywords:  cfg.BootstrapKeywords,
		BootstrapMinLength: cfg.BootstrapMinLength,
	})
}

// engine holds the conversation core built from one configuration
type engine struct {
	conversations *services.ConversationService
	operators     *services.OperatorService
}

func buildEngine(
	cfg *config.Config,
	store storage.Store,
	bank *questions.Bank,
	gateway services.OutboundGateway,
	notifier services.CompletionNotifier,
	leads services.LeadEnqueuer,
	rec *metrics.Recorder,
	logger *slog.Logger,
) (*engine, error) {
	alerter := services.NewGatewayOperatorAlerter(gateway, cfg.OperatorPhone, logger)
	router := services.NewFlowRouter(store, store, routingRules(cfg.Routing), logger)

	conversations, err := services.NewConversationService(router, store, gateway, rec, logger,
		services.NewEightQuestionFlow(store, bank, notifier, leads, rec, logger),
		services.NewHighTicketFlow(alerter, logger),
		services.NewSupportFlow(store, store, logger),
		services.NewHumanFlow(alerter, logger),
	)
	if err != nil {
		return nil, err
	}

	return &engine{
		conversations: conversations,
		operators:     services.NewOperatorService(store, gateway, logger),
	}, nil
}
