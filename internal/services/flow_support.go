package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

const (
	supportOptionApply = "1"
	supportOptionHuman = "2"
)

var supportMenu = InteractiveMessage{
	Kind:   InteractiveButton,
	Header: "How can we help?",
	Body:   "Pick an option below, or just describe your question and we'll log it for the team.",
	Footer: "Reply with a number",
	Options: []InteractiveOption{
		{ID: supportOptionApply, Title: "Apply with project"},
		{ID: supportOptionHuman, Title: "Talk to a person"},
	},
}

// SupportFlow shows the triage menu and logs free-text requests as tickets
type SupportFlow struct {
	sessions storage.SessionStore
	tickets  storage.TicketStore
	logger   *slog.Logger
}

func NewSupportFlow(sessions storage.SessionStore, tickets storage.TicketStore, logger *slog.Logger) *SupportFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &SupportFlow{sessions: sessions, tickets: tickets, logger: logger}
}

func (f *SupportFlow) Flow() models.FlowType { return models.FlowSupport }

func (f *SupportFlow) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	s := turn.Session
	if turn.Entered {
		return menuReply(s, ""), nil
	}

	switch strings.TrimSpace(turn.Text) {
	case supportOptionApply:
		return f.switchTo(ctx, s, models.FlowEightQuestion)
	case supportOptionHuman:
		return f.switchTo(ctx, s, models.FlowHuman)
	}

	ticket, err := f.tickets.CreateSupportTicket(ctx, &models.SupportTicket{
		SessionID:   s.ID,
		UserPhone:   s.UserPhone,
		IssueType:   models.IssueTypeGeneral,
		Description: strings.TrimSpace(turn.Text),
	})
	if err != nil {
		return nil, err
	}
	f.logger.Info("🎫 support request logged", "session_id", s.ID, "ticket_id", ticket.TicketID)

	return menuReply(s, fmt.Sprintf("📝 Thanks, we've logged your request (ticket %s). The team will follow up.", ticket.TicketID)), nil
}

func (f *SupportFlow) switchTo(ctx context.Context, s *models.Session, flow models.FlowType) (*Reply, error) {
	switched, err := f.sessions.SwitchFlow(ctx, s.ID, s.Version, flow)
	if err != nil {
		return nil, err
	}
	return &Reply{Session: switched, SwitchedTo: flow}, nil
}

func menuReply(s *models.Session, prefix string) *Reply {
	menu := supportMenu
	if prefix != "" {
		menu.Body = prefix + "\n\n" + menu.Body
	}
	return &Reply{Body: menu.Text(), Interactive: &menu, Session: s}
}
