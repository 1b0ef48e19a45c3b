package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(capacity int, interval time.Duration) (*Limiter, *time.Time) {
	l := New(capacity, interval)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter(t *testing.T) {
	t.Run("Burst Up To Capacity", func(t *testing.T) {
		l, now := newTestLimiter(4, 60*time.Second)

		for i := 0; i < 4; i++ {
			if !l.Allow() {
				t.Fatalf("send %d should have been allowed", i+1)
			}
			l.Record()
			*now = now.Add(200 * time.Millisecond)
		}
		if l.Allow() {
			t.Error("5th send within the window should have been denied")
		}
	})

	t.Run("Capacity Frees After Interval", func(t *testing.T) {
		l, now := newTestLimiter(4, 60*time.Second)

		for i := 0; i < 4; i++ {
			l.Record()
		}
		if l.Allow() {
			t.Fatal("window should be full")
		}

		*now = now.Add(61 * time.Second)
		if !l.Allow() {
			t.Error("expected capacity after the oldest send expired")
		}
	})

	t.Run("Denied Attempt Consumes Nothing", func(t *testing.T) {
		l, now := newTestLimiter(1, 60*time.Second)

		l.Record()
		for i := 0; i < 10; i++ {
			if l.Allow() {
				t.Fatal("window should stay full")
			}
		}

		// Only the single recorded send must expire for capacity to return.
		*now = now.Add(61 * time.Second)
		if !l.Allow() {
			t.Error("denied probes must not have extended the window")
		}
	})

	t.Run("Partial Eviction", func(t *testing.T) {
		l, now := newTestLimiter(2, 60*time.Second)

		l.Record()
		*now = now.Add(40 * time.Second)
		l.Record()
		if l.Allow() {
			t.Fatal("both sends are inside the window")
		}

		// 25s later the first send is 65s old, the second only 25s.
		*now = now.Add(25 * time.Second)
		if !l.Allow() {
			t.Error("expected one slot after the older send expired")
		}
		l.Record()
		if l.Allow() {
			t.Error("window should be full again")
		}
	})
}
