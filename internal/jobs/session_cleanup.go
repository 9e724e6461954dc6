// Package jobs holds the background loops started by the server.
//
// session_cleanup.go implements SessionCleanupJob, which periodically deletes
// user_sessions rows past their expiry. Expired rows are already rejected by the
// session middleware, so the job only keeps the table from growing.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/telemetry"
)

const defaultCleanupInterval = time.Hour

// SessionCleanupJob purges expired sessions on a fixed interval.
type SessionCleanupJob struct {
	sessions *repositories.SessionRepository
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSessionCleanupJob creates the job. An interval <= 0 means hourly.
func NewSessionCleanupJob(sessions *repositories.SessionRepository, interval time.Duration) *SessionCleanupJob {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &SessionCleanupJob{
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one purge immediately and then one per interval until ctx is
// cancelled or Stop is called. It blocks; run it on its own goroutine.
func (j *SessionCleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	slog.Info("session cleanup job started", "interval", j.interval)
	j.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			j.RunOnce(ctx)
		case <-j.stopChan:
			slog.Info("session cleanup job stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit. Safe to call more than once.
func (j *SessionCleanupJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
}

// RunOnce deletes every session that expired before now and returns the count
func (j *SessionCleanupJob) RunOnce(ctx context.Context) int64 {
	n, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		slog.Error("session cleanup failed", "error", err)
		return 0
	}
	if n > 0 {
		telemetry.SessionsPurgedTotal.Add(float64(n))
		slog.Info("purged expired sessions", "count", n)
	}
	return n
}
