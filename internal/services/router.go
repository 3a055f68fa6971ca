package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// RouteReason explains how FlowRouter reached a decision
type RouteReason string

const (
	ReasonDuplicate    RouteReason = "duplicate"
	ReasonKeyword      RouteReason = "keyword"
	ReasonContinuation RouteReason = "continuation"
	ReasonBootstrap    RouteReason = "bootstrap"
)

// FlowDecision is the result of routing one inbound message
type FlowDecision struct {
	Flow      models.FlowType
	Session   *models.Session
	Duplicate bool
	Reason    RouteReason
	// Entered is set when the session was just created or switched into Flow
	Entered bool
}

// FlowRouter picks the flow and session for each inbound message and logs the message
type FlowRouter struct {
	sessions storage.SessionStore
	messages storage.MessageLog
	rules    RoutingRules
	logger   *slog.Logger
	now      func() time.Time
}

// NewFlowRouter creates a router over the given stores and rules
func NewFlowRouter(sessions storage.SessionStore, messages storage.MessageLog, rules RoutingRules, logger *slog.Logger) *FlowRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowRouter{
		sessions: sessions,
		messages: messages,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
	}
}

// Route resolves the session for a message and appends the message to the transcript.
// A message whose channel id was already logged yields Duplicate and changes nothing.
func (r *FlowRouter) Route(ctx context.Context, userPhone, text, channelMessageID string) (*FlowDecision, error) {
	if channelMessageID != "" {
		seen, err := r.messages.HasChannelMessage(ctx, channelMessageID)
		if err != nil {
			return nil, err
		}
		if seen {
			return &FlowDecision{Duplicate: true, Reason: ReasonDuplicate}, nil
		}
	}

	var decision *FlowDecision
	err := retryOnStale(func() error {
		var err error
		decision, err = r.resolve(ctx, userPhone, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := r.now()
	if err := r.sessions.TouchInbound(ctx, decision.Session.ID, now); err != nil {
		r.logger.Warn("failed to touch session", "session_id", decision.Session.ID, "error", err)
	}

	inbound := models.NewInboundMessage(decision.Session.ID, userPhone, text, channelMessageID, now)
	if err := r.messages.Append(ctx, inbound); err != nil {
		if errors.Is(err, storage.ErrDuplicateMessage) {
			return &FlowDecision{Duplicate: true, Reason: ReasonDuplicate, Session: decision.Session, Flow: decision.Flow}, nil
		}
		return nil, fmt.Errorf("failed to log inbound message: %w", err)
	}

	return decision, nil
}

func (r *FlowRouter) resolve(ctx context.Context, userPhone, text string) (*FlowDecision, error) {
	active, err := r.sessions.GetActive(ctx, userPhone)
	if err != nil && !errors.Is(err, storage.ErrNoActiveSession) {
		return nil, err
	}

	// An operator-owned conversation stays where it is until released
	if active != nil && active.FlowType == models.FlowHuman && active.OperatorActive {
		return &FlowDecision{Flow: active.FlowType, Session: active, Reason: ReasonContinuation}, nil
	}

	if flow, ok := r.rules.MatchTrigger(text); ok {
		switch {
		case active == nil:
			s, err := r.sessions.CreateSession(ctx, userPhone, flow)
			if err != nil {
				return nil, err
			}
			return &FlowDecision{Flow: s.FlowType, Session: s, Reason: ReasonKeyword, Entered: s.FlowType == flow}, nil
		case active.FlowType == flow:
			return &FlowDecision{Flow: flow, Session: active, Reason: ReasonKeyword}, nil
		default:
			s, err := r.sessions.SwitchFlow(ctx, active.ID, active.Version, flow)
			if err != nil {
				return nil, err
			}
			r.logger.Info("switched flow", "session_id", s.ID, "from", active.FlowType, "to", flow)
			return &FlowDecision{Flow: flow, Session: s, Reason: ReasonKeyword, Entered: true}, nil
		}
	}

	if active != nil {
		return &FlowDecision{Flow: active.FlowType, Session: active, Reason: ReasonContinuation}, nil
	}

	flow := r.rules.BootstrapFlow(text)
	s, err := r.sessions.CreateSession(ctx, userPhone, flow)
	if err != nil {
		return nil, err
	}
	// A concurrent first message may have created the session already
	return &FlowDecision{Flow: s.FlowType, Session: s, Reason: ReasonBootstrap, Entered: s.FlowType == flow}, nil
}
