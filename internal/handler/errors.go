package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// kindStatus maps each apperr kind to the status it is served with.
var kindStatus = map[error]int{
	apperr.ErrValidation:      http.StatusBadRequest,
	apperr.ErrConflict:        http.StatusConflict,
	apperr.ErrUnauthorized:    http.StatusUnauthorized,
	apperr.ErrForbidden:       http.StatusForbidden,
	apperr.ErrNotFound:        http.StatusNotFound,
	apperr.ErrTooManyRequests: http.StatusTooManyRequests,
}

// ErrorHandler maps categorized errors to their status code and a stable JSON
// body. Uncategorized errors become a logged 500 with a generic message.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// A handler that already wrote its body cannot be answered twice.
		if c.Response().Committed {
			return
		}
		status, body := resolve(err)
		// Only 500s are logged here; expected failures are reported by the
		// request logger with their status.
		if status == http.StatusInternalServerError {
			apperr.LogError(logger.With("method", c.Request().Method, "path", c.Path()), "request failed", err)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Warn("write error response", "err", werr)
		}
	}
}

// resolve picks the status and body for err. Categorized errors come first,
// then Echo's own errors (404 route, 405 method), then the 500 fallback,
// which never echoes err's text to the client.
func resolve(err error) (int, errorBody) {
	if kind := apperr.Kind(err); kind != nil {
		code := apperr.Code(err)
		// Errors built without a code still get a readable one.
		if code == "" {
			code = http.StatusText(kindStatus[kind])
		}
		return kindStatus[kind], errorBody{Error: code, Message: apperr.Message(err)}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, errorBody{Error: http.StatusText(he.Code), Message: msg}
	}
	return http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"}
}

// errBadBody is returned when the JSON body cannot be bound.
var errBadBody = apperr.New(apperr.ErrValidation, "INVALID_BODY", "invalid request body")
