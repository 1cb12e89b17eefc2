package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
)

var errAccountBlocked = apperr.New(apperr.ErrUnauthorized, "ACCOUNT_BLOCKED", "account is blocked")

// AccountLookup loads the account behind a principal.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// RequireActive re-reads the caller's account on every request. An access
// token outlives a block, so the token alone cannot prove the account may
// still act. It must run after JWTAuth.
func RequireActive(accounts AccountLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return errMissingBearer
			}
			acc, err := accounts.GetByID(c.Request().Context(), p.AccountID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Account removed after the token was minted.
					return errInvalidBearer
				}
				return err
			}
			if acc.IsBlocked {
				return errAccountBlocked
			}
			// The stored role wins over the claim for the role checks after us.
			p.Role = acc.Role
			setPrincipal(c, p)
			return next(c)
		}
	}
}
