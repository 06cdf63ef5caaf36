package portal

import (
	"sync"
	"time"
)

const (
	defaultFormLimit  = 10
	defaultFormWindow = time.Minute
)

// formLimiter is a per-visitor sliding-window limiter for form submissions.
type formLimiter struct {
	mu     sync.Mutex
	events []time.Time
	limit  int
	window time.Duration
}

func newFormLimiter(limit int, window time.Duration) *formLimiter {
	if limit <= 0 {
		limit = defaultFormLimit
	}
	if window <= 0 {
		window = defaultFormWindow
	}
	return &formLimiter{
		events: make([]time.Time, 0, limit),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether a submission at now is permitted and records it if so.
func (l *formLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	dst := l.events[:0]
	for _, t := range l.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	l.events = dst

	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}
