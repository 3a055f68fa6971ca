package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// IdleSessions is the slice of the session store the inactivity job needs
type IdleSessions interface {
	ListIdle(ctx context.Context, before time.Time) ([]*models.Session, error)
	Close(ctx context.Context, id string) (*models.Session, error)
}

// InactivityJob closes active sessions with no inbound message for longer than the timeout
type InactivityJob struct {
	sessions IdleSessions
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewInactivityJob(sessions IdleSessions, timeout time.Duration, logger *slog.Logger) *InactivityJob {
	if logger == nil {
		logger = slog.Default()
	}
	interval := timeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return &InactivityJob{
		sessions: sessions,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start is a no-op when the timeout is zero
func (j *InactivityJob) Start() {
	if j.timeout <= 0 {
		j.logger.Info("session inactivity timeout disabled")
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}
	j.stop = make(chan struct{})
	j.done = make(chan struct{})

	j.logger.Info("⏰ starting inactivity check", "timeout", j.timeout, "interval", j.interval)
	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := j.RunOnce(context.Background()); err != nil {
					j.logger.Error("❌ inactivity check failed", "error", err)
				}
			}
		}
	}(j.stop, j.done)
}

func (j *InactivityJob) Stop() {
	j.mu.Lock()
	if j.stop == nil {
		j.mu.Unlock()
		return
	}
	close(j.stop)
	done := j.done
	j.stop = nil
	j.mu.Unlock()
	<-done
}

// RunOnce closes every session idle past the timeout and returns how many were closed
func (j *InactivityJob) RunOnce(ctx context.Context) (int, error) {
	idle, err := j.sessions.ListIdle(ctx, j.now().Add(-j.timeout))
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, s := range idle {
		if _, err := j.sessions.Close(ctx, s.ID); err != nil {
			j.logger.Warn("failed to close idle session", "session_id", s.ID, "error", err)
			continue
		}
		closed++
		j.logger.Info("🔒 closed idle session", "session_id", s.ID, "phone", s.UserPhone, "flow", s.FlowType)
	}
	return closed, nil
}
