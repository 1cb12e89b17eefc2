package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps counters in process. Instances do not share budgets, so
// it suits a single replica or tests.
type MemoryLimiter struct {
	quota quota

	mu        sync.Mutex
	counters  map[string]*counter
	nextSweep time.Time
}

type counter struct {
	hits    int64
	expires time.Time
}

// NewMemory creates a limiter allowing limit hits per window.
func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		quota:    newQuota(limit, window),
		counters: make(map[string]*counter),
	}
}

// Allow counts the hit against key's window, opening a new window when the
// previous one has lapsed.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	c := l.counters[key]
	if c == nil || !now.Before(c.expires) {
		c = &counter{expires: now.Add(l.quota.window)}
		l.counters[key] = c
	}
	c.hits++
	allowed, retryAfter := l.quota.judge(c.hits, c.expires.Sub(now))
	return allowed, retryAfter, nil
}

// sweep drops lapsed counters at most once per window so idle callers do
// not accumulate.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, c := range l.counters {
		if !now.Before(c.expires) {
			delete(l.counters, key)
		}
	}
	l.nextSweep = now.Add(l.quota.window)
}
