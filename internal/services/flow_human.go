package services

import (
	"context"
	"log/slog"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

const (
	humanHandoffMessage = "🙋 Got it, we're connecting you with a member of our team. " +
		"They'll reply right here in this chat."
	humanWaitingMessage = "⏳ A team member will be with you shortly."
)

// HumanFlow hands the conversation to an operator and goes quiet once one takes over
type HumanFlow struct {
	alerter OperatorAlerter
	logger  *slog.Logger
}

func NewHumanFlow(alerter OperatorAlerter, logger *slog.Logger) *HumanFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &HumanFlow{alerter: alerter, logger: logger}
}

func (f *HumanFlow) Flow() models.FlowType { return models.FlowHuman }

func (f *HumanFlow) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	s := turn.Session

	if s.OperatorActive {
		f.logger.Info("operator active, auto-reply suppressed", "session_id", s.ID)
		return &Reply{Suppress: true, Session: s}, nil
	}

	if turn.Entered {
		if err := f.alerter.AlertOperator(ctx, s, "User asked for a person"); err != nil {
			f.logger.Error("❌ failed to alert operator", "session_id", s.ID, "error", err)
		}
		return &Reply{Body: humanHandoffMessage, Session: s}, nil
	}

	return &Reply{Body: humanWaitingMessage, Session: s}, nil
}
