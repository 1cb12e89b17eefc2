// Package ratelimit implements fixed-window request counters keyed by caller.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/homestay-auth/internal/config"
)

// Limiter decides whether one more request for key fits in the current
// window. When it does not, retryAfter is the time until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// New picks the backend named by cfg.Backend. "auto" uses Redis when rdb is
// non-nil and memory otherwise.
func New(cfg config.RateLimitConfig, rdb *redis.Client) Limiter {
	switch {
	case cfg.Backend == "memory", rdb == nil:
		return NewMemory(cfg.Max, cfg.Window)
	default:
		return NewRedis(rdb, cfg.Max, cfg.Window, cfg.Prefix)
	}
}
