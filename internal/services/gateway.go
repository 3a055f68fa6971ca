package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InteractiveKind is the WhatsApp interactive message type
type InteractiveKind string

const (
	InteractiveButton InteractiveKind = "button"
	InteractiveList   InteractiveKind = "list"
)

// InteractiveOption is one button or list row
type InteractiveOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// InteractiveMessage is a button or list message
type InteractiveMessage struct {
	Kind    InteractiveKind     `json:"kind"`
	Header  string              `json:"header,omitempty"`
	Body    string              `json:"body"`
	Footer  string              `json:"footer,omitempty"`
	Options []InteractiveOption `json:"options"`
}

// Text renders the message as plain text with numbered options, for channels without interactive support
func (m InteractiveMessage) Text() string {
	var b strings.Builder
	if m.Header != "" {
		fmt.Fprintf(&b, "*%s*\n\n", m.Header)
	}
	b.WriteString(m.Body)
	if len(m.Options) > 0 {
		b.WriteString("\n")
		for i, opt := range m.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Title)
		}
	}
	if m.Footer != "" {
		fmt.Fprintf(&b, "\n\n_%s_", m.Footer)
	}
	return b.String()
}

// OutboundGateway delivers messages to a WhatsApp user
type OutboundGateway interface {
	Name() string
	// Send delivers a text message, threaded as a reply to replyTo when the channel supports it
	Send(ctx context.Context, to, body, replyTo string) error
	SendInteractive(ctx context.Context, to string, msg InteractiveMessage) error
}

// GatewayError is a failed outbound delivery
type GatewayError struct {
	Gateway string
	To      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: delivery to %s failed: %v", e.Gateway, e.To, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// LogGateway only logs outbound messages. Used when no channel credentials are configured.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a log-only gateway
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Name() string { return "log" }

func (g *LogGateway) Send(ctx context.Context, to, body, replyTo string) error {
	g.logger.InfoContext(ctx, "📤 outbound message", "to", to, "reply_to", replyTo, "body", body)
	return nil
}

func (g *LogGateway) SendInteractive(ctx context.Context, to string, msg InteractiveMessage) error {
	g.logger.InfoContext(ctx, "📤 outbound interactive message", "to", to, "kind", msg.Kind, "options", len(msg.Options), "body", msg.Body)
	return nil
}
