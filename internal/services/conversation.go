package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// GenericRetryMessage is sent when a turn fails for an internal reason
const GenericRetryMessage = "😕 Sorry, something went wrong on our side. Please send your last message again."

// TurnResult describes what happened to one inbound message
type TurnResult struct {
	SessionID  string          `json:"session_id,omitempty"`
	Flow       models.FlowType `json:"flow,omitempty"`
	Reply      string          `json:"reply,omitempty"`
	Duplicate  bool            `json:"duplicate,omitempty"`
	Suppressed bool            `json:"suppressed,omitempty"`
	Ignored    bool            `json:"ignored,omitempty"`
}

// ConversationService runs one inbound message through routing, the flow handler and the gateway
type ConversationService struct {
	router   *FlowRouter
	handlers map[models.FlowType]FlowHandler
	sessions storage.SessionStore
	messages storage.MessageLog
	gateway  OutboundGateway
	metrics  *metrics.Recorder
	logger   *slog.Logger
	locks    *phoneLocks
	now      func() time.Time
}

// NewConversationService wires the router, one handler per flow and the outbound gateway
func NewConversationService(
	router *FlowRouter,
	store storage.Store,
	gateway OutboundGateway,
	rec *metrics.Recorder,
	logger *slog.Logger,
	handlers ...FlowHandler,
) (*ConversationService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	byFlow := make(map[models.FlowType]FlowHandler, len(handlers))
	for _, h := range handlers {
		byFlow[h.Flow()] = h
	}
	for _, flow := range models.AllFlows {
		if _, ok := byFlow[flow]; !ok {
			return nil, fmt.Errorf("no handler registered for flow %s", flow)
		}
	}

	return &ConversationService{
		router:   router,
		handlers: byFlow,
		sessions: store,
		messages: store,
		gateway:  gateway,
		metrics:  rec,
		logger:   logger,
		locks:    newPhoneLocks(),
		now:      time.Now,
	}, nil
}

// HandleInbound processes one inbound message. Turns for the same phone run one at a time.
// Internal failures are answered with GenericRetryMessage and only reported through logs,
// so the returned error is reserved for a cancelled context.
func (c *ConversationService) HandleInbound(ctx context.Context, msg models.InboundMessage) (*TurnResult, error) {
	if !msg.Routable() {
		c.logger.Info("ignoring non-text message", "from", msg.From, "type", msg.Type)
		return &TurnResult{Ignored: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(msg.From)
	defer unlock()

	decision, err := c.router.Route(ctx, msg.From, msg.Body, msg.ChannelMessageID)
	if err != nil {
		c.logger.Error("❌ routing failed", "from", msg.From, "error", err)
		c.deliver(ctx, nil, msg, &Reply{Body: GenericRetryMessage})
		return &TurnResult{Reply: GenericRetryMessage}, nil
	}
	if decision.Duplicate {
		c.metrics.Duplicate()
		c.logger.Info("duplicate delivery dropped", "from", msg.From, "channel_message_id", msg.ChannelMessageID)
		return &TurnResult{Duplicate: true}, nil
	}
	c.metrics.Routed(string(decision.Flow), string(decision.Reason))

	reply, err := c.runTurn(ctx, Turn{Session: decision.Session, Text: msg.Body, Entered: decision.Entered})
	if err != nil {
		c.logTurnError(decision.Session, err)
		reply = &Reply{Body: GenericRetryMessage, Session: decision.Session}
	}

	result := &TurnResult{SessionID: reply.Session.ID, Flow: reply.Session.FlowType}
	if reply.Suppress {
		result.Suppressed = true
		return result, nil
	}

	c.deliver(ctx, reply.Session, msg, reply)
	result.Reply = reply.Body
	return result, nil
}

// runTurn dispatches to the session's flow handler, re-reading the session after a lost
// version race, and follows one flow switch requested by the handler.
func (c *ConversationService) runTurn(ctx context.Context, turn Turn) (*Reply, error) {
	reply, err := c.dispatch(ctx, turn)
	if err != nil {
		return nil, err
	}
	if reply.SwitchedTo == "" {
		return reply, nil
	}

	c.logger.Info("switched flow", "session_id", reply.Session.ID, "to", reply.SwitchedTo)
	next, err := c.dispatch(ctx, Turn{Session: reply.Session, Text: turn.Text, Entered: true})
	if err != nil {
		return nil, err
	}
	next.SwitchedTo = ""
	return next, nil
}

func (c *ConversationService) dispatch(ctx context.Context, turn Turn) (*Reply, error) {
	var reply *Reply
	attempt := 0
	err := retryOnStale(func() error {
		if attempt > 0 {
			c.metrics.StaleRetry()
			fresh, err := c.sessions.GetSession(ctx, turn.Session.ID)
			if err != nil {
				return err
			}
			if !fresh.IsActive() {
				return fmt.Errorf("session %s: %w", fresh.ID, storage.ErrSessionNotActive)
			}
			turn.Session = fresh
		}
		attempt++

		handler, ok := c.handlers[turn.Session.FlowType]
		if !ok {
			return fmt.Errorf("no handler for flow %q", turn.Session.FlowType)
		}
		var err error
		reply, err = handler.Handle(ctx, turn)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reply.Session == nil {
		reply.Session = turn.Session
	}
	return reply, nil
}

// deliver logs the outbound message and hands it to the gateway.
// Delivery failures are logged and counted, the session state stays as committed.
func (c *ConversationService) deliver(ctx context.Context, s *models.Session, in models.InboundMessage, reply *Reply) {
	if s != nil {
		out := models.NewOutboundMessage(s.ID, in.From, reply.Body, c.now())
		if err := c.messages.Append(ctx, out); err != nil {
			c.logger.Error("❌ failed to log outbound message", "session_id", s.ID, "error", err)
		}
	}

	var err error
	if reply.Interactive != nil {
		err = c.gateway.SendInteractive(ctx, in.From, *reply.Interactive)
	} else {
		err = c.gateway.Send(ctx, in.From, reply.Body, in.ChannelMessageID)
	}
	if err != nil {
		c.metrics.SendFailed(c.gateway.Name())
		c.logger.Error("❌ outbound delivery failed", "to", in.From, "gateway", c.gateway.Name(), "error", err)
	}
}

func (c *ConversationService) logTurnError(s *models.Session, err error) {
	attrs := []any{"session_id", s.ID, "flow", s.FlowType, "error", err}
	switch {
	case errors.Is(err, storage.ErrStaleVersion), errors.Is(err, storage.ErrSessionNotFound), errors.Is(err, storage.ErrSessionNotActive):
		c.logger.Warn("turn abandoned after session conflict", attrs...)
	default:
		c.logger.Error("❌ turn failed", attrs...)
	}
}
