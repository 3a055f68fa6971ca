package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/queue"
)

// PendingLeads is the queue the reconcile job drains
type PendingLeads interface {
	List(ctx context.Context) ([]queue.PendingLead, error)
	MarkFailed(ctx context.Context, p queue.PendingLead, cause error) error
	Remove(ctx context.Context, p queue.PendingLead) error
}

// LeadNotifier re-delivers a queued lead
type LeadNotifier interface {
	OnLeadQualified(ctx context.Context, lead models.Lead) error
}

// ReconcileJob periodically retries lead notifications that failed during a turn
type ReconcileJob struct {
	leads    PendingLeads
	notifier LeadNotifier
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool

	// pass serializes RunOnce between the ticker and on-demand runs
	pass sync.Mutex
}

// ReconcileStats summarises one reconciliation pass
type ReconcileStats struct {
	Delivered int
	Failed    int
}

// NewReconcileJob creates a reconcile job running every interval
func NewReconcileJob(leads PendingLeads, notifier LeadNotifier, interval time.Duration, logger *slog.Logger) *ReconcileJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileJob{leads: leads, notifier: notifier, interval: interval, logger: logger}
}

// Start runs the job in the background until Stop is called
func (j *ReconcileJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		j.logger.Info("lead reconciliation already running")
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	j.done = make(chan struct{})

	j.logger.Info("⏰ starting lead reconciliation", "interval", j.interval)
	go j.loop(j.stop, j.done)
}

// Stop halts the job and waits for an in-flight pass to finish
func (j *ReconcileJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stop)
	done := j.done
	j.mu.Unlock()

	<-done
	j.logger.Info("stopped lead reconciliation")
}

func (j *ReconcileJob) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error("❌ lead reconciliation failed", "error", err)
			}
			cancel()
		}
	}
}

// RunOnce tries every pending lead once
func (j *ReconcileJob) RunOnce(ctx context.Context) (ReconcileStats, error) {
	j.pass.Lock()
	defer j.pass.Unlock()

	var stats ReconcileStats

	pending, err := j.leads.List(ctx)
	if err != nil {
		return stats, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := j.notifier.OnLeadQualified(ctx, p.Lead); err != nil {
			stats.Failed++
			j.logger.Warn("lead still undeliverable", "session_id", p.Lead.SessionID, "attempts", p.Attempts+1, "error", err)
			if merr := j.leads.MarkFailed(ctx, p, err); merr != nil {
				j.logger.Error("❌ failed to update pending lead", "id", p.ID, "error", merr)
			}
			continue
		}

		stats.Delivered++
		if err := j.leads.Remove(ctx, p); err != nil {
			j.logger.Error("❌ failed to remove delivered lead", "id", p.ID, "error", err)
		}
	}

	if len(pending) > 0 {
		j.logger.Info("✅ lead reconciliation pass", "delivered", stats.Delivered, "failed", stats.Failed)
	}
	return stats, nil
}
