package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com"
	defaultGraphVersion = "v21.0"
)

// Cloud API limits for interactive messages
const (
	maxButtons          = 3
	maxButtonTitle      = 20
	maxListRows         = 10
	maxListRowTitle     = 24
	maxListDescription  = 72
	maxHeaderFooterText = 60
)

// CloudAPIConfig holds the WhatsApp Cloud API settings
type CloudAPIConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// CloudAPIGateway sends messages through the WhatsApp Cloud API
type CloudAPIGateway struct {
	endpoint string
	token    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCloudAPIGateway creates a Cloud API gateway
func NewCloudAPIGateway(cfg CloudAPIConfig, logger *slog.Logger) (*CloudAPIGateway, error) {
	if cfg.PhoneNumberID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("missing WhatsApp Cloud API phone number id or access token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGraphBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultGraphVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CloudAPIGateway{
		endpoint: fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(cfg.BaseURL, "/"), cfg.APIVersion, cfg.PhoneNumberID),
		token:    cfg.AccessToken,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

func (g *CloudAPIGateway) Name() string { return "cloudapi" }

type cloudText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type cloudContext struct {
	MessageID string `json:"message_id"`
}

type cloudMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Text             *cloudText        `json:"text,omitempty"`
	Interactive      *cloudInteractive `json:"interactive,omitempty"`
	Context          *cloudContext     `json:"context,omitempty"`
}

type cloudInteractive struct {
	Type   string         `json:"type"`
	Header *cloudHeader   `json:"header,omitempty"`
	Body   cloudBodyText  `json:"body"`
	Footer *cloudBodyText `json:"footer,omitempty"`
	Action cloudAction    `json:"action"`
}

type cloudHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cloudBodyText struct {
	Text string `json:"text"`
}

type cloudAction struct {
	Button   string         `json:"button,omitempty"`
	Buttons  []cloudButton  `json:"buttons,omitempty"`
	Sections []cloudSection `json:"sections,omitempty"`
}

type cloudButton struct {
	Type  string      `json:"type"`
	Reply cloudOption `json:"reply"`
}

type cloudOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type cloudSection struct {
	Title string        `json:"title"`
	Rows  []cloudOption `json:"rows"`
}

// Send posts a text message, threaded to replyTo when set
func (g *CloudAPIGateway) Send(ctx context.Context, to, body, replyTo string) error {
	msg := cloudMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &cloudText{Body: body},
	}
	if replyTo != "" {
		msg.Context = &cloudContext{MessageID: replyTo}
	}
	return g.post(to, msg)
}

// SendInteractive posts a button or list message. A message the Cloud API would
// reject for its size limits goes out as numbered plain text instead.
func (g *CloudAPIGateway) SendInteractive(ctx context.Context, to string, im InteractiveMessage) error {
	if err := checkInteractiveLimits(im); err != nil {
		g.logger.Warn("⚠️ Interactive message exceeds Cloud API limits, sending as text", "to", to, "error", err)
		return g.Send(ctx, to, im.Text(), "")
	}

	interactive := &cloudInteractive{
		Type: string(im.Kind),
		Body: cloudBodyText{Text: im.Body},
	}
	if im.Header != "" {
		interactive.Header = &cloudHeader{Type: "text", Text: im.Header}
	}
	if im.Footer != "" {
		interactive.Footer = &cloudBodyText{Text: im.Footer}
	}

	switch im.Kind {
	case InteractiveButton:
		for _, opt := range im.Options {
			interactive.Action.Buttons = append(interactive.Action.Buttons, cloudButton{
				Type:  "reply",
				Reply: cloudOption{ID: opt.ID, Title: opt.Title},
			})
		}
	case InteractiveList:
		section := cloudSection{Title: "Options"}
		for _, opt := range im.Options {
			section.Rows = append(section.Rows, cloudOption(opt))
		}
		interactive.Action.Button = "Choose"
		interactive.Action.Sections = []cloudSection{section}
	default:
		return &GatewayError{Gateway: g.Name(), To: to, Err: fmt.Errorf("unsupported interactive kind %q", im.Kind)}
	}

	return g.post(to, cloudMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      interactive,
	})
}

func checkInteractiveLimits(im InteractiveMessage) error {
	tooLong := func(field, value string, max int) error {
		if utf8.RuneCountInString(value) > max {
			return fmt.Errorf("%s %q is longer than %d characters", field, value, max)
		}
		return nil
	}

	if err := tooLong("header", im.Header, maxHeaderFooterText); err != nil {
		return err
	}
	if err := tooLong("footer", im.Footer, maxHeaderFooterText); err != nil {
		return err
	}

	switch im.Kind {
	case InteractiveButton:
		if len(im.Options) > maxButtons {
			return fmt.Errorf("%d buttons, at most %d allowed", len(im.Options), maxButtons)
		}
		for _, opt := range im.Options {
			if err := tooLong("button title", opt.Title, maxButtonTitle); err != nil {
				return err
			}
		}
	case InteractiveList:
		if len(im.Options) > maxListRows {
			return fmt.Errorf("%d rows, at most %d allowed", len(im.Options), maxListRows)
		}
		for _, opt := range im.Options {
			if err := tooLong("row title", opt.Title, maxListRowTitle); err != nil {
				return err
			}
			if err := tooLong("row description", opt.Description, maxListDescription); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *CloudAPIGateway) post(to string, payload cloudMessage) error {
	agent := fiber.Post(g.endpoint)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	agent.JSON(payload)
	agent.Timeout(g.timeout)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return &GatewayError{Gateway: g.Name(), To: to, Err: errs[0]}
	}
	if status >= fiber.StatusBadRequest {
		return &GatewayError{Gateway: g.Name(), To: to, Err: fmt.Errorf("cloud api returned %d: %s", status, truncate(string(body), 300))}
	}

	g.logger.Info("✅ WhatsApp message sent", "to", to, "type", payload.Type)
	return nil
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
