package config

import "time"

// RateLimitConfig configures the fixed-window limiter in front of the
// credential and OTP endpoints.
type RateLimitConfig struct {
	Enabled     bool
	Max         int
	Window      time.Duration
	KeyStrategy string // ip | ip_route
	Prefix      string
	Backend     string // auto | redis | memory
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables with sane floors.
func LoadRateLimitConfig() RateLimitConfig {
	c := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Max:         envInt("RATE_LIMIT_MAX", 30),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
		Backend:     envStr("RATE_LIMIT_BACKEND", "auto"),
	}
	if c.Max < 1 {
		c.Max = 1
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.KeyStrategy != "ip" {
		c.KeyStrategy = "ip_route"
	}
	return c
}
