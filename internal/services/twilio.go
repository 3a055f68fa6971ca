package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioConfig holds the Twilio account and sender settings
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // Format: "whatsapp:+14155238886"
	// ContentSIDs maps an interactive kind ("button", "list") to an approved content template
	ContentSIDs map[string]string
}

// twilioMessenger is the part of the Twilio REST client the gateway uses
type twilioMessenger interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends WhatsApp messages through the Twilio Messages API
type TwilioGateway struct {
	api         twilioMessenger
	from        string
	contentSIDs map[string]string
	logger      *slog.Logger
}

// NewTwilioGateway creates a Twilio gateway
func NewTwilioGateway(cfg TwilioConfig, logger *slog.Logger) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newTwilioGateway(client.Api, cfg, logger), nil
}

func newTwilioGateway(api twilioMessenger, cfg TwilioConfig, logger *slog.Logger) *TwilioGateway {
	if logger == nil {
		logger = slog.Default()
	}
	from := cfg.From
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	return &TwilioGateway{
		api:         api,
		from:        from,
		contentSIDs: cfg.ContentSIDs,
		logger:      logger,
	}
}

func (t *TwilioGateway) Name() string { return "twilio" }

// Send sends a plain WhatsApp message. Twilio has no reply threading so replyTo is only logged.
func (t *TwilioGateway) Send(ctx context.Context, to, body, replyTo string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(body)

	return t.create(to, params, "reply_to", replyTo)
}

// SendInteractive uses the content template configured for the kind, or falls back to numbered text
func (t *TwilioGateway) SendInteractive(ctx context.Context, to string, msg InteractiveMessage) error {
	contentSID := t.contentSIDs[string(msg.Kind)]
	if contentSID == "" {
		return t.Send(ctx, to, msg.Text(), "")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetContentSid(contentSID)

	// Template variables are numbered: 1 is the body, then one per option title
	variables := map[string]string{"1": msg.Body}
	for i, opt := range msg.Options {
		variables[fmt.Sprintf("%d", i+2)] = opt.Title
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return &GatewayError{Gateway: t.Name(), To: to, Err: fmt.Errorf("failed to marshal content variables: %w", err)}
	}
	params.SetContentVariables(string(variablesJSON))

	return t.create(to, params, "content_sid", contentSID)
}

func (t *TwilioGateway) create(to string, params *twilioApi.CreateMessageParams, attrs ...any) error {
	resp, err := t.api.CreateMessage(params)
	if err != nil {
		return &GatewayError{Gateway: t.Name(), To: to, Err: err}
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return &GatewayError{Gateway: t.Name(), To: to, Err: fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)}
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.logger.Info("✅ WhatsApp message sent", append([]any{"to", to, "sid", sid}, attrs...)...)
	return nil
}

func whatsappAddress(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
