package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/ratelimit"
)

const errRateLimitedCode = "TOO_MANY_REQUESTS"

// RateLimit rejects callers over the fixed-window ceiling with 429 before the
// handler runs. Limiter failures are logged and the request is let through.
func RateLimit(cfg config.RateLimitConfig, limiter ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Keys are built per caller, and per route unless the "ip"
			// strategy pools every auth route into one budget.
			key := buildRateKey(cfg, c)
			allowed, retryAfter, err := limiter.Allow(c.Request().Context(), key, time.Now())
			// Fail open: limiter errors let the request through.
			if err != nil {
				logger.Warn("rate limiter unavailable", "key", key, "err", err)
				return next(c)
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			if allowed {
				return next(c)
			}

			// Retry-After is whole seconds; a sub-second remainder still
			// means "wait", so round up and never advertise zero.
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			m.Limited(c.Path())
			logger.Info("rate limited", "key", key, "retry_after", secs)
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			// The body itself is rendered by the shared error handler.
			return apperr.Newf(apperr.ErrTooManyRequests, errRateLimitedCode,
				"rate limit exceeded, retry in %d seconds", secs)
		}
	}
}

// buildRateKey returns "ip:<addr>" or "ip:<addr>:route:<METHOD> <path>".
// c.Path is the route template, so ids in the URL do not split the budget.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{"ip", ip}
	if strings.ToLower(cfg.KeyStrategy) != "ip" {
		parts = append(parts, "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}
