// Package safego launches background work that must never take the process down:
// notification inserts, audit writes, event publishing and periodic jobs.
package safego

import (
	"context"
	"log/slog"
	"time"
)

// Go runs fn in a new goroutine. A panic is recovered and logged.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// GoWithTimeout runs fn in a new goroutine with a context that keeps parent's values
// but not its cancellation, bounded by timeout. The work outlives the request that
// started it.
func GoWithTimeout(parent context.Context, timeout time.Duration, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(parent)
	Go(func() {
		ctx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		fn(ctx)
	})
}
