package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

var (
	// ErrSessionNotFound is returned for an unknown session id
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveSession is returned by GetActive when the phone has no active session
	ErrNoActiveSession = errors.New("no active session")
	// ErrStaleVersion is returned when a versioned mutation lost a race
	ErrStaleVersion = errors.New("stale session version")
	// ErrSessionNotActive is returned when a flow mutation targets a completed or closed session
	ErrSessionNotActive = errors.New("session is not active")
	// ErrDuplicateMessage is returned when a channel message id was already logged
	ErrDuplicateMessage = errors.New("duplicate channel message")
)

// SessionFilter narrows ListSessions
type SessionFilter struct {
	UserPhone string
	Status    models.SessionStatus
	Limit     int
}

// SessionStore persists conversation sessions.
// Versioned mutations compare expectedVersion with the stored version and fail with ErrStaleVersion on mismatch.
// Each successful mutation bumps the version and returns the updated session.
type SessionStore interface {
	GetActive(ctx context.Context, userPhone string) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	CreateSession(ctx context.Context, userPhone string, flow models.FlowType) (*models.Session, error)
	SwitchFlow(ctx context.Context, id string, expectedVersion int64, flow models.FlowType) (*models.Session, error)
	AdvanceStep(ctx context.Context, id string, expectedVersion int64) (*models.Session, error)
	RecordAnswer(ctx context.Context, id string, expectedVersion int64, questionID string, answer models.Answer) (*models.Session, error)
	MarkCompleted(ctx context.Context, id string, expectedVersion int64) (*models.Session, error)
	Close(ctx context.Context, id string) (*models.Session, error)

	SetOperatorActive(ctx context.Context, id string, active bool) (*models.Session, error)
	TouchInbound(ctx context.Context, id string, at time.Time) error
	ListIdle(ctx context.Context, before time.Time) ([]*models.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error)
}

// MessageLog is the append-only transcript
type MessageLog interface {
	// Append stores a message. It returns ErrDuplicateMessage if the channel message id was seen before.
	Append(ctx context.Context, msg *models.Message) error
	HasChannelMessage(ctx context.Context, channelMessageID string) (bool, error)
	ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error)
}

// TicketStore keeps support requests raised in the support flow
type TicketStore interface {
	CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error)
	GetSupportTicketsByUser(ctx context.Context, userPhone string) ([]*models.SupportTicket, error)
}

// Store bundles every persistence concern of the service
type Store interface {
	SessionStore
	MessageLog
	TicketStore
}
