package services

import (
	"context"
	"log/slog"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

const (
	highTicketWelcome = "🤝 Thanks for reaching out about a partnership. " +
		"A senior member of our team will contact you personally within one business day."
	highTicketFollowUp = "👍 Noted, we've added this to your request."
)

// HighTicketFlow acknowledges premium enquiries and alerts the team
type HighTicketFlow struct {
	alerter OperatorAlerter
	logger  *slog.Logger
}

func NewHighTicketFlow(alerter OperatorAlerter, logger *slog.Logger) *HighTicketFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &HighTicketFlow{alerter: alerter, logger: logger}
}

func (f *HighTicketFlow) Flow() models.FlowType { return models.FlowHighTicket }

func (f *HighTicketFlow) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	s := turn.Session
	if !turn.Entered {
		return &Reply{Body: highTicketFollowUp, Session: s}, nil
	}

	if err := f.alerter.AlertOperator(ctx, s, "High-ticket enquiry: "+turn.Text); err != nil {
		f.logger.Error("❌ failed to alert operator", "session_id", s.ID, "error", err)
	}
	return &Reply{Body: highTicketWelcome, Session: s}, nil
}
