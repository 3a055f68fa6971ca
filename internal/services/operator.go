package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// ErrEmptyMessage is returned when an operator tries to send a blank message
var ErrEmptyMessage = errors.New("message body is empty")

// OperatorService carries out the actions a human operator takes on a session
type OperatorService struct {
	store   storage.Store
	gateway OutboundGateway
	logger  *slog.Logger
	now     func() time.Time
}

func NewOperatorService(store storage.Store, gateway OutboundGateway, logger *slog.Logger) *OperatorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperatorService{store: store, gateway: gateway, logger: logger, now: time.Now}
}

// Takeover moves the session into the human flow and silences automatic replies
func (o *OperatorService) Takeover(ctx context.Context, sessionID string) (*models.Session, error) {
	err := retryOnStale(func() error {
		s, err := o.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.FlowType == models.FlowHuman {
			return nil
		}
		_, err = o.store.SwitchFlow(ctx, s.ID, s.Version, models.FlowHuman)
		return err
	})
	if err != nil {
		return nil, err
	}

	s, err := o.store.SetOperatorActive(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	o.logger.Info("🧑‍💼 operator took over session", "session_id", s.ID, "phone", s.UserPhone)
	return s, nil
}

// Release hands the session back to automatic replies
func (o *OperatorService) Release(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := o.store.SetOperatorActive(ctx, sessionID, false)
	if err != nil {
		return nil, err
	}
	o.logger.Info("operator released session", "session_id", s.ID)
	return s, nil
}

// Close ends the session
func (o *OperatorService) Close(ctx context.Context, sessionID string) (*models.Session, error) {
	s, err := o.store.Close(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	o.logger.Info("🔒 session closed", "session_id", s.ID, "phone", s.UserPhone)
	return s, nil
}

// SendMessage sends an operator-written message to the session's user and logs it
func (o *OperatorService) SendMessage(ctx context.Context, sessionID, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}

	s, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := o.store.Append(ctx, models.NewOutboundMessage(s.ID, s.UserPhone, body, o.now())); err != nil {
		return fmt.Errorf("failed to log operator message: %w", err)
	}
	return o.gateway.Send(ctx, s.UserPhone, body, "")
}
