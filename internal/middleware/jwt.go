package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
)

var (
	errMissingBearer = apperr.New(apperr.ErrUnauthorized, "TOKEN_MISSING", "missing bearer token")
	errInvalidBearer = apperr.New(apperr.ErrUnauthorized, "TOKEN_INVALID", "invalid token")
)

// AccessVerifier checks an access token and resolves its principal.
type AccessVerifier interface {
	VerifyAccessToken(raw string) (model.Principal, error)
}

// JWTAuth validates the Bearer access token and stores the resolved principal
// in the request context. Refresh tokens are rejected by the verifier.
func JWTAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Only the Bearer scheme is accepted; anything else counts as no token.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return errMissingBearer
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return errMissingBearer
			}
			// The reason a token failed (expired, bad signature, wrong type) is
			// not disclosed.
			p, err := v.VerifyAccessToken(raw)
			if err != nil {
				return errInvalidBearer
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}
