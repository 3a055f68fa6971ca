package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// ErrNotifierNotConfigured is returned by a webhook notifier without a target URL
var ErrNotifierNotConfigured = errors.New("lead webhook url not configured")

// WebhookLeadNotifier posts qualified leads as JSON to the downstream lead service
type WebhookLeadNotifier struct {
	url     string
	token   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewWebhookLeadNotifier creates a notifier posting to url with an optional bearer token
func NewWebhookLeadNotifier(url, token string, timeout time.Duration, logger *slog.Logger) *WebhookLeadNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookLeadNotifier{url: url, token: token, timeout: timeout, logger: logger}
}

func (n *WebhookLeadNotifier) OnLeadQualified(ctx context.Context, lead models.Lead) error {
	if n.url == "" {
		return ErrNotifierNotConfigured
	}

	agent := fiber.Post(n.url)
	if n.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+n.token)
	}
	agent.Set("Idempotency-Key", lead.SessionID)
	agent.JSON(lead)
	agent.Timeout(n.timeout)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("failed to post lead %s: %w", lead.SessionID, errs[0])
	}
	if status >= fiber.StatusBadRequest {
		return fmt.Errorf("lead webhook returned %d for %s: %s", status, lead.SessionID, truncate(string(body), 300))
	}

	n.logger.Info("🎯 lead delivered", "session_id", lead.SessionID, "status", status)
	return nil
}

// LogLeadNotifier logs leads. Used when LEAD_WEBHOOK_URL is unset.
type LogLeadNotifier struct {
	logger *slog.Logger
}

func NewLogLeadNotifier(logger *slog.Logger) *LogLeadNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogLeadNotifier{logger: logger}
}

func (n *LogLeadNotifier) OnLeadQualified(ctx context.Context, lead models.Lead) error {
	n.logger.InfoContext(ctx, "🎯 lead qualified", "session_id", lead.SessionID, "phone", lead.UserPhone, "answers", len(lead.Answers))
	return nil
}

// GatewayOperatorAlerter messages the operator phone over the outbound gateway.
// With no operator phone configured it only logs.
type GatewayOperatorAlerter struct {
	gateway       OutboundGateway
	operatorPhone string
	logger        *slog.Logger
}

func NewGatewayOperatorAlerter(gateway OutboundGateway, operatorPhone string, logger *slog.Logger) *GatewayOperatorAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayOperatorAlerter{gateway: gateway, operatorPhone: operatorPhone, logger: logger}
}

func (a *GatewayOperatorAlerter) AlertOperator(ctx context.Context, session *models.Session, reason string) error {
	a.logger.Warn("🙋 operator attention needed", "session_id", session.ID, "phone", session.UserPhone, "flow", session.FlowType, "reason", reason)
	if a.operatorPhone == "" || a.gateway == nil {
		return nil
	}

	body := fmt.Sprintf("🔔 %s\nUser: %s\nFlow: %s\nSession: %s", reason, session.UserPhone, session.FlowType, session.ID)
	return a.gateway.Send(ctx, a.operatorPhone, body, "")
}
