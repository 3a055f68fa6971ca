package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/questions"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	To          string
	Body        string
	ReplyTo     string
	Interactive bool
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (g *recordingGateway) Name() string { return "test" }

func (g *recordingGateway) Send(ctx context.Context, to, body, replyTo string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{To: to, Body: body, ReplyTo: replyTo})
	return g.err
}

func (g *recordingGateway) SendInteractive(ctx context.Context, to string, msg InteractiveMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{To: to, Body: msg.Text(), Interactive: true})
	return g.err
}

func (g *recordingGateway) to(phone string) []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sentMessage
	for _, m := range g.sent {
		if m.To == phone {
			out = append(out, m)
		}
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	leads []models.Lead
	err   error
}

func (n *recordingNotifier) OnLeadQualified(ctx context.Context, lead models.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leads = append(n.leads, lead)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.leads)
}

type recordingQueue struct {
	mu     sync.Mutex
	leads  []models.Lead
	causes []error
}

func (q *recordingQueue) Enqueue(ctx context.Context, lead models.Lead, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leads = append(q.leads, lead)
	q.causes = append(q.causes, cause)
	return nil
}

type recordingAlerter struct {
	mu      sync.Mutex
	reasons []string
}

func (a *recordingAlerter) AlertOperator(ctx context.Context, s *models.Session, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = append(a.reasons, reason)
	return nil
}

// staleOnceStore fails the first AdvanceStep per session with ErrStaleVersion,
// bumping the stored version first as a competing writer would.
type staleOnceStore struct {
	*storage.MemoryStore
	mu      sync.Mutex
	tripped map[string]bool
	stale   int
}

func (s *staleOnceStore) AdvanceStep(ctx context.Context, id string, expectedVersion int64) (*models.Session, error) {
	s.mu.Lock()
	trip := !s.tripped[id]
	s.tripped[id] = true
	s.mu.Unlock()

	if trip {
		if _, err := s.MemoryStore.SetOperatorActive(ctx, id, false); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.stale++
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: injected", storage.ErrStaleVersion)
	}
	return s.MemoryStore.AdvanceStep(ctx, id, expectedVersion)
}

type harness struct {
	t        *testing.T
	store    storage.Store
	gateway  *recordingGateway
	notifier *recordingNotifier
	queue    *recordingQueue
	alerter  *recordingAlerter
	svc      *ConversationService
	ops      *OperatorService
	seq      atomic.Int64
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, storage.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store storage.Store) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		store:    store,
		gateway:  &recordingGateway{},
		notifier: &recordingNotifier{},
		queue:    &recordingQueue{},
		alerter:  &recordingAlerter{},
	}

	logger := quietLogger()
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	router := NewFlowRouter(store, store, DefaultRoutingRules(), logger)

	svc, err := NewConversationService(router, store, h.gateway, rec, logger,
		NewEightQuestionFlow(store, questions.DefaultBank(), h.notifier, h.queue, rec, logger),
		NewHighTicketFlow(h.alerter, logger),
		NewSupportFlow(store, store, logger),
		NewHumanFlow(h.alerter, logger),
	)
	require.NoError(t, err)

	h.svc = svc
	h.ops = NewOperatorService(store, h.gateway, logger)
	return h
}

// send delivers a text message with a fresh channel message id
func (h *harness) send(phone, body string) *TurnResult {
	h.t.Helper()
	return h.sendWithID(phone, body, fmt.Sprintf("wamid.%d", h.seq.Add(1)))
}

func (h *harness) sendWithID(phone, body, channelID string) *TurnResult {
	h.t.Helper()
	res, err := h.svc.HandleInbound(context.Background(), models.InboundMessage{
		From:             phone,
		Type:             "text",
		Body:             body,
		ChannelMessageID: channelID,
	})
	require.NoError(h.t, err)
	return res
}

func (h *harness) active(phone string) *models.Session {
	h.t.Helper()
	s, err := h.store.GetActive(context.Background(), phone)
	require.NoError(h.t, err)
	return s
}

// validAnswers answers the default question bank in order
var validAnswers = []string{
	"Atlas",
	"A lending protocol for small businesses in emerging markets.",
	"2",
	"1, 3",
	"2",
	"1",
	"1 3",
	"Jane Doe - jane@example.com",
}
