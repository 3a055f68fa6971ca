package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyNotifier struct {
	mu     sync.Mutex
	failOn map[string]bool
	got    []string
}

func (n *flakyNotifier) OnLeadQualified(ctx context.Context, lead models.Lead) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, lead.SessionID)
	if n.failOn[lead.SessionID] {
		return errors.New("downstream unavailable")
	}
	return nil
}

func TestReconcileRunOnce(t *testing.T) {
	ctx := context.Background()
	q, err := queue.Open("")
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(ctx, models.Lead{SessionID: "ok"}, errors.New("timeout")))
	require.NoError(t, q.Enqueue(ctx, models.Lead{SessionID: "bad"}, errors.New("timeout")))

	notifier := &flakyNotifier{failOn: map[string]bool{"bad": true}}
	job := NewReconcileJob(q, notifier, time.Hour, quietLogger())

	stats, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Delivered)
	assert.Equal(t, 1, stats.Failed)
	assert.ElementsMatch(t, []string{"ok", "bad"}, notifier.got)

	pending, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bad", pending[0].Lead.SessionID)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "downstream unavailable", pending[0].LastError)
}

func TestReconcileStartStop(t *testing.T) {
	q, err := queue.Open("")
	require.NoError(t, err)
	defer q.Close()

	job := NewReconcileJob(q, &flakyNotifier{}, 10*time.Millisecond, quietLogger())
	job.Start()
	job.Start()
	time.Sleep(30 * time.Millisecond)
	job.Stop()
	job.Stop()
}

func TestInactivityClosesIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	idle, err := store.CreateSession(ctx, "+15550001", models.FlowSupport)
	require.NoError(t, err)
	fresh, err := store.CreateSession(ctx, "+15550002", models.FlowEightQuestion)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.TouchInbound(ctx, idle.ID, now.Add(-3*time.Hour)))
	require.NoError(t, store.TouchInbound(ctx, fresh.ID, now))

	job := NewInactivityJob(store, time.Hour, quietLogger())
	job.now = func() time.Time { return now }

	closed, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	s, err := store.GetSession(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, s.Status)

	_, err = store.GetActive(ctx, "+15550002")
	assert.NoError(t, err)
}

func TestInactivityDisabled(t *testing.T) {
	job := NewInactivityJob(storage.NewMemoryStore(), 0, quietLogger())
	job.Start()
	job.Stop()
}
