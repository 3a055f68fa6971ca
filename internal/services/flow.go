package services

import (
	"context"
	"errors"
	"sync"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

// maxStaleAttempts bounds how often a turn is re-run after losing a version race
const maxStaleAttempts = 3

// Turn is one routed inbound message handed to a flow handler
type Turn struct {
	Session *models.Session
	Text    string
	Entered bool
}

// Reply is what a flow handler wants sent back
type Reply struct {
	Body        string
	Interactive *InteractiveMessage
	// Suppress marks an explicit no-op: nothing is sent
	Suppress bool
	// Session is the session state after the turn
	Session *models.Session
	// SwitchedTo asks the caller to enter another flow with the same turn
	SwitchedTo models.FlowType
}

// FlowHandler runs one conversation flow
type FlowHandler interface {
	Flow() models.FlowType
	Handle(ctx context.Context, turn Turn) (*Reply, error)
}

// CompletionNotifier is told about every completed questionnaire
type CompletionNotifier interface {
	OnLeadQualified(ctx context.Context, lead models.Lead) error
}

// LeadEnqueuer keeps leads whose notification failed for later reconciliation
type LeadEnqueuer interface {
	Enqueue(ctx context.Context, lead models.Lead, cause error) error
}

// OperatorAlerter tells the team a conversation needs a person
type OperatorAlerter interface {
	AlertOperator(ctx context.Context, session *models.Session, reason string) error
}

func retryOnStale(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxStaleAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, storage.ErrStaleVersion) {
			return err
		}
	}
	return err
}

// phoneLocks serialises turns per user phone inside one process
type phoneLocks struct {
	mu    sync.Mutex
	locks map[string]*phoneLock
}

type phoneLock struct {
	mu   sync.Mutex
	refs int
}

func newPhoneLocks() *phoneLocks {
	return &phoneLocks{locks: make(map[string]*phoneLock)}
}

// Lock blocks until phone is free and returns the matching unlock func
func (p *phoneLocks) Lock(phone string) func() {
	p.mu.Lock()
	l, ok := p.locks[phone]
	if !ok {
		l = &phoneLock{}
		p.locks[phone] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, phone)
		}
		p.mu.Unlock()
	}
}
