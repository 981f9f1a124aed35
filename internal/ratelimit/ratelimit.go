// Package ratelimit enforces minimum spacing between upstream requests.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter serializes permits so that consecutive acquisitions are separated
// by at least a fixed interval. The upstream quote API allows 5 requests per
// minute per key, so one limiter instance is shared across all symbols and
// fetches within a tick are strictly serialized through it.
//
// There is no burst credit: every permit consumes a full interval regardless
// of how long the caller spends holding it.
type Limiter struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// New creates a limiter with the given minimum inter-permit interval.
// A non-positive interval disables the limiter.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Interval reports the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous permit was granted, or until ctx is cancelled. The first
// acquisition is immediate. Acquire cannot fail on its own; the only error
// it returns is the context's.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := time.Now()
		wait := l.last.Add(l.interval).Sub(now)
		if wait <= 0 {
			l.last = now
			l.mu.Unlock()
			return nil
		}
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
