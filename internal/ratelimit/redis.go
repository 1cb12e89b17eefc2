package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errUnexpectedReply = errors.New("ratelimit: unexpected redis reply")
	errInvalidWindow   = errors.New("ratelimit: window must be at least 1ms")
)

// hitScript bumps the counter at KEYS[1], arming its expiry on the first hit,
// and replies {hits, pttl}. ARGV[1] is the window in milliseconds.
var hitScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisLimiter shares windows across every replica pointed at one Redis.
type RedisLimiter struct {
	client *redis.Client
	quota  quota
	keys   keyspace
}

// NewRedis creates a Redis-backed limiter. Keys live under prefix, or under
// the service default when prefix is blank.
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, quota: newQuota(limit, window), keys: newKeyspace(prefix)}
}

// Allow ignores now; the window is the key's TTL on the server.
func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.quota.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, errInvalidWindow
	}

	reply, err := hitScript.Run(ctx, l.client, []string{l.keys.key(key)}, windowMS).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(reply) != 2 {
		return false, 0, errUnexpectedReply
	}
	allowed, retryAfter := l.quota.judge(reply[0], time.Duration(reply[1])*time.Millisecond)
	return allowed, retryAfter, nil
}
