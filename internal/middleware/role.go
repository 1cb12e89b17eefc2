package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
)

var errForbiddenRole = apperr.New(apperr.ErrForbidden, "FORBIDDEN", "forbidden")

// RequireRole aborts with 403 unless the principal holds one of roles. It must
// run after JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// No principal means JWTAuth did not run; answer as unauthenticated.
			p, ok := PrincipalFrom(c)
			if !ok {
				return errMissingBearer
			}
			if !p.Is(roles...) {
				return errForbiddenRole
			}
			return next(c)
		}
	}
}
