package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// requestIDHeader doubles as the echo.Context key for the id.
const requestIDHeader = echo.HeaderXRequestID

// RequestID propagates the caller's X-Request-ID or assigns a fresh one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(requestIDHeader, id)
			c.Response().Header().Set(requestIDHeader, id)
			return next(c)
		}
	}
}

// Logger writes one structured line per request. It must sit outside every
// middleware that can fail so their errors are rendered before logging.
func Logger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}
			// Route template keeps the log cardinality low; unmatched requests
			// fall back to the raw path.
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			reqID, _ := c.Get(requestIDHeader).(string)
			logger.Info("request",
				slog.String("method", c.Request().Method),
				slog.String("path", path),
				slog.Int("status", c.Response().Status),
				slog.Duration("latency", time.Since(start)),
				slog.String("client_ip", c.RealIP()),
				slog.String("request_id", reqID),
				slog.String("account_id", accountID(c)),
			)
			// The error has been handled; returning it would render it twice.
			return nil
		}
	}
}
