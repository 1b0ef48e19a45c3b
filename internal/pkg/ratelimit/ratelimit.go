// Package ratelimit provides a sliding-window gate for outbound alerts.
//
// The window holds the timestamps of the last sends; Allow only inspects it,
// and the caller records a send after the alert actually went out. A denied
// attempt therefore never consumes capacity.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter bounds sends to at most capacity within any trailing interval.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	interval time.Duration
	sent     []time.Time

	now func() time.Time // test hook
}

// New creates a Limiter allowing capacity sends per interval.
func New(capacity int, interval time.Duration) *Limiter {
	return &Limiter{
		capacity: capacity,
		interval: interval,
		now:      time.Now,
	}
}

// Allow evicts expired timestamps and reports whether another send fits in
// the window. It does not record anything.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.sent) < l.capacity
}

// Record registers a completed send. Call it only after the action executed.
func (l *Limiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.evict(now)
	l.sent = append(l.sent, now)
}

func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.interval)
	i := 0
	for i < len(l.sent) && !l.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}
