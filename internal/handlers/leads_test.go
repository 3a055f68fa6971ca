package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/jobs"
	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
)

type recordingNotifier struct {
	delivered []string
	err       error
}

func (n *recordingNotifier) OnLeadQualified(ctx context.Context, lead models.Lead) error {
	if n.err != nil {
		return n.err
	}
	n.delivered = append(n.delivered, lead.SessionID)
	return nil
}

type failingReconciler struct{}

func (failingReconciler) RunOnce(ctx context.Context) (jobs.ReconcileStats, error) {
	return jobs.ReconcileStats{}, errors.New("queue closed")
}

func newLeadApp(leads PendingLeadLister, reconciler LeadReconciler) *fiber.App {
	h := NewLeadHandler(leads, reconciler, quietLogger())
	app := fiber.New()
	app.Get("/leads", h.ListPending)
	app.Post("/leads/reconcile", h.Reconcile)
	return app
}

func TestReconcileWhileQueueIsHeldOpen(t *testing.T) {
	ctx := context.Background()

	// the running server owns the on-disk queue and its directory lock
	leads, err := queue.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = leads.Close() })

	require.NoError(t, leads.Enqueue(ctx, models.Lead{SessionID: "s1", UserPhone: "+15550100"}, errors.New("timeout")))
	require.NoError(t, leads.Enqueue(ctx, models.Lead{SessionID: "s2", UserPhone: "+15550101"}, errors.New("timeout")))

	notifier := &recordingNotifier{}
	app := newLeadApp(leads, jobs.NewReconcileJob(leads, notifier, 0, quietLogger()))
	f := &adminFixture{app: app}

	status, body := f.do(t, httptest.NewRequest(http.MethodGet, "/leads", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = f.do(t, httptest.NewRequest(http.MethodPost, "/leads/reconcile", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["delivered"])
	assert.EqualValues(t, 0, body["failed"])
	assert.ElementsMatch(t, []string{"s1", "s2"}, notifier.delivered)

	n, err := leads.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcileKeepsUndeliveredLeads(t *testing.T) {
	ctx := context.Background()
	leads, err := queue.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = leads.Close() })
	require.NoError(t, leads.Enqueue(ctx, models.Lead{SessionID: "s1"}, errors.New("timeout")))

	app := newLeadApp(leads, jobs.NewReconcileJob(leads, &recordingNotifier{err: errors.New("503")}, 0, quietLogger()))
	f := &adminFixture{app: app}

	status, body := f.do(t, httptest.NewRequest(http.MethodPost, "/leads/reconcile", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["delivered"])
	assert.EqualValues(t, 1, body["failed"])

	n, err := leads.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReconcileFailure(t *testing.T) {
	leads, err := queue.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = leads.Close() })

	f := &adminFixture{app: newLeadApp(leads, failingReconciler{})}
	status, body := f.do(t, httptest.NewRequest(http.MethodPost, "/leads/reconcile", nil))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Lead reconciliation failed", body["error"])
}
