package ratelimiter

import (
	"sync"
	"time"
)

// Limiter paces byte consumption to a target rate. Callers reserve the
// bytes they are about to consume and sleep for the returned duration.
// It is safe for concurrent use; concurrent reservations share one
// budget, so a single Limiter caps the aggregate rate of all callers.
type Limiter struct {
	mu             sync.Mutex
	bytesPerSecond int64
	readyAt        time.Time
}

// New creates a limiter capping consumption at bytesPerSecond. A zero
// or negative rate means unlimited.
func New(bytesPerSecond int64) *Limiter {
	return &Limiter{bytesPerSecond: bytesPerSecond}
}

// Reserve accounts for n bytes and returns how long the caller must
// wait before consuming them. Returns zero when the limiter is nil,
// unlimited, or the budget still has room. Idle time does not accrue
// credit, so a quiet period cannot be followed by a burst.
func (l *Limiter) Reserve(n int) time.Duration {
	if l == nil || n <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bytesPerSecond <= 0 {
		return 0
	}

	now := time.Now()
	if l.readyAt.Before(now) {
		l.readyAt = now
	}
	wait := l.readyAt.Sub(now)

	cost := time.Duration(float64(n) / float64(l.bytesPerSecond) * float64(time.Second))
	l.readyAt = l.readyAt.Add(cost)

	return wait
}

// Reset clears accumulated debt, allowing the next reservation to
// proceed immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.readyAt = time.Time{}
	l.mu.Unlock()
}

// Rate returns the configured limit in bytes per second.
func (l *Limiter) Rate() int64 {
	return l.bytesPerSecond
}
