// Package ratelimit bounds the outbound gateway call rate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter allows at most max calls per rolling window. When the budget
// is exhausted Acquire suspends the caller until the window boundary, then
// resets and proceeds. It never rejects.
//
// The limiter is local to one process; it does not coordinate across
// instances.
type WindowLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	count       int
	windowStart time.Time

	now func() time.Time
}

// NewWindowLimiter creates a limiter for max calls per window.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Acquire returns once it is safe to issue one more call. It blocks across
// the window boundary when the budget is spent and returns early only when
// ctx is canceled.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		if now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}

		if l.count < l.max {
			l.count++
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
