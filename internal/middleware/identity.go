package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/model"
)

// principalKey is where JWTAuth leaves the caller in echo.Context.
const principalKey = "principal"

func setPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the principal stored by JWTAuth. A principal without
// an account id is treated as absent.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok && p.AccountID != ""
}

// accountID identifies the caller for logging, or "guest" when anonymous.
func accountID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.AccountID
	}
	return "guest"
}
