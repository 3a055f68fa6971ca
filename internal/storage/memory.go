package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and USE_MEMORY_STORE=true.
type MemoryStore struct {
	sessions map[string]*models.Session
	active   map[string]string // phone -> active session id
	messages map[string][]*models.Message
	seen     map[string]bool // channel message ids
	tickets  map[string][]*models.SupportTicket

	sessionMu sync.RWMutex
	messageMu sync.RWMutex
	ticketMu  sync.Mutex

	ticketCounter int
	now           func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		active:   make(map[string]string),
		messages: make(map[string][]*models.Message),
		seen:     make(map[string]bool),
		tickets:  make(map[string][]*models.SupportTicket),
		now:      time.Now,
	}
}

// Session operations

func (m *MemoryStore) GetActive(ctx context.Context, userPhone string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	id, ok := m.active[userPhone]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, userPhone string, flow models.FlowType) (*models.Session, error) {
	if !flow.Valid() {
		return nil, fmt.Errorf("cannot create session: unknown flow %q", flow)
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if id, ok := m.active[userPhone]; ok {
		return m.sessions[id].Clone(), nil
	}

	s := models.NewSession(userPhone, flow, m.now())
	m.sessions[s.ID] = s
	m.active[userPhone] = s.ID
	return s.Clone(), nil
}

func (m *MemoryStore) SwitchFlow(ctx context.Context, id string, expectedVersion int64, flow models.FlowType) (*models.Session, error) {
	if !flow.Valid() {
		return nil, fmt.Errorf("cannot switch session %s: unknown flow %q", id, flow)
	}
	return m.mutate(id, expectedVersion, func(s *models.Session) (bool, error) {
		if !s.IsActive() {
			return false, ErrSessionNotActive
		}
		if s.FlowType == flow {
			return false, nil
		}
		s.FlowType = flow
		s.CurrentStep = 0
		if flow == models.FlowEightQuestion {
			s.Answers = models.Answers{}
		}
		s.OperatorActive = false
		return true, nil
	})
}

func (m *MemoryStore) AdvanceStep(ctx context.Context, id string, expectedVersion int64) (*models.Session, error) {
	return m.mutate(id, expectedVersion, func(s *models.Session) (bool, error) {
		if !s.IsActive() {
			return false, ErrSessionNotActive
		}
		s.CurrentStep++
		return true, nil
	})
}

func (m *MemoryStore) RecordAnswer(ctx context.Context, id string, expectedVersion int64, questionID string, answer models.Answer) (*models.Session, error) {
	return m.mutate(id, expectedVersion, func(s *models.Session) (bool, error) {
		if !s.IsActive() {
			return false, ErrSessionNotActive
		}
		if s.Answers == nil {
			s.Answers = models.Answers{}
		}
		s.Answers[questionID] = answer.Clone()
		return true, nil
	})
}

func (m *MemoryStore) MarkCompleted(ctx context.Context, id string, expectedVersion int64) (*models.Session, error) {
	return m.mutate(id, expectedVersion, func(s *models.Session) (bool, error) {
		return true, m.transition(s, models.EventComplete)
	})
}

func (m *MemoryStore) Close(ctx context.Context, id string) (*models.Session, error) {
	return m.mutate(id, -1, func(s *models.Session) (bool, error) {
		return true, m.transition(s, models.EventClose)
	})
}

func (m *MemoryStore) SetOperatorActive(ctx context.Context, id string, active bool) (*models.Session, error) {
	return m.mutate(id, -1, func(s *models.Session) (bool, error) {
		if !s.IsActive() {
			return false, ErrSessionNotActive
		}
		s.OperatorActive = active
		return true, nil
	})
}

func (m *MemoryStore) TouchInbound(ctx context.Context, id string, at time.Time) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.LastInboundAt = at
	return nil
}

func (m *MemoryStore) ListIdle(ctx context.Context, before time.Time) ([]*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var idle []*models.Session
	for _, id := range m.active {
		s := m.sessions[id]
		if s.LastInboundAt.Before(before) {
			idle = append(idle, s.Clone())
		}
	}
	sortSessions(idle)
	return idle, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var out []*models.Session
	for _, s := range m.sessions {
		if filter.UserPhone != "" && s.UserPhone != filter.UserPhone {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s.Clone())
	}
	sortSessions(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// mutate runs fn against the stored session under the write lock.
// expectedVersion < 0 skips the version check. fn reports whether it changed anything.
func (m *MemoryStore) mutate(id string, expectedVersion int64, fn func(*models.Session) (bool, error)) (*models.Session, error) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if expectedVersion >= 0 && stored.Version != expectedVersion {
		return nil, fmt.Errorf("%w: session %s at version %d, expected %d", ErrStaleVersion, id, stored.Version, expectedVersion)
	}

	working := stored.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if !changed {
		return stored.Clone(), nil
	}

	working.Version = stored.Version + 1
	working.UpdatedAt = m.now()
	m.sessions[id] = working
	if !working.IsActive() && m.active[working.UserPhone] == id {
		delete(m.active, working.UserPhone)
	}
	return working.Clone(), nil
}

func (m *MemoryStore) transition(s *models.Session, event string) error {
	next, err := models.NextStatus(s.Status, event)
	if err != nil {
		return err
	}
	s.Status = next
	return nil
}

func sortSessions(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

// Message operations

func (m *MemoryStore) Append(ctx context.Context, msg *models.Message) error {
	m.messageMu.Lock()
	defer m.messageMu.Unlock()

	if msg.ChannelMessageID != nil {
		if m.seen[*msg.ChannelMessageID] {
			return fmt.Errorf("%w: %s", ErrDuplicateMessage, *msg.ChannelMessageID)
		}
		m.seen[*msg.ChannelMessageID] = true
	}

	stored := *msg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &stored)
	return nil
}

func (m *MemoryStore) HasChannelMessage(ctx context.Context, channelMessageID string) (bool, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()
	return m.seen[channelMessageID], nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	m.messageMu.RLock()
	defer m.messageMu.RUnlock()

	stored := m.messages[sessionID]
	out := make([]*models.Message, len(stored))
	for i, msg := range stored {
		c := *msg
		out[i] = &c
	}
	return out, nil
}

// Support operations

func (m *MemoryStore) CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error) {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	m.ticketCounter++
	created := *ticket
	if created.TicketID == "" {
		created.TicketID = fmt.Sprintf("TK%05d", m.ticketCounter)
	}
	if created.IssueType == "" {
		created.IssueType = models.IssueTypeGeneral
	}
	if created.Status == "" {
		created.Status = models.TicketStatusOpen
	}
	created.ID = uint(m.ticketCounter)
	created.CreatedAt = m.now()
	created.UpdatedAt = created.CreatedAt

	m.tickets[created.UserPhone] = append(m.tickets[created.UserPhone], &created)
	out := created
	return &out, nil
}

func (m *MemoryStore) GetSupportTicketsByUser(ctx context.Context, userPhone string) ([]*models.SupportTicket, error) {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	stored := m.tickets[userPhone]
	out := make([]*models.SupportTicket, len(stored))
	for i, t := range stored {
		c := *t
		out[i] = &c
	}
	return out, nil
}
