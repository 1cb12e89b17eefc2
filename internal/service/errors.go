package service

import "github.com/iliyamo/homestay-auth/internal/apperr"

var (
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	ErrAccountBlocked     = apperr.New(apperr.ErrUnauthorized, "ACCOUNT_BLOCKED", "account is blocked")
	ErrRoleMismatch       = apperr.New(apperr.ErrUnauthorized, "ROLE_MISMATCH", "account is not allowed to sign in here")
	ErrOAuthOnly          = apperr.New(apperr.ErrUnauthorized, "OAUTH_ONLY", "account uses social sign-in")
	ErrOAuthRejected      = apperr.New(apperr.ErrUnauthorized, "OAUTH_REJECTED", "identity provider rejected the token")

	ErrInvalidOTP = apperr.New(apperr.ErrUnauthorized, "OTP_INVALID", "invalid code")
	ErrOTPExpired = apperr.New(apperr.ErrUnauthorized, "OTP_EXPIRED", "code has expired")

	ErrRefreshMissing = apperr.New(apperr.ErrForbidden, "REFRESH_TOKEN_MISSING", "refresh token required")
	ErrRefreshInvalid = apperr.New(apperr.ErrForbidden, "REFRESH_TOKEN_INVALID", "invalid refresh token")

	ErrResetInvalid = apperr.New(apperr.ErrUnauthorized, "RESET_TOKEN_INVALID", "invalid reset token")
	ErrResetExpired = apperr.New(apperr.ErrUnauthorized, "RESET_TOKEN_EXPIRED", "reset token has expired")

	ErrEmailExists     = apperr.New(apperr.ErrConflict, "EMAIL_EXISTS", "email already registered")
	ErrAccountNotFound = apperr.New(apperr.ErrNotFound, "ACCOUNT_NOT_FOUND", "account not found")

	ErrHostNotFound      = apperr.New(apperr.ErrNotFound, "HOST_NOT_FOUND", "host not found")
	ErrReasonRequired    = apperr.Validation("reason", "rejection reason is required")
	ErrInvalidTransition = apperr.New(apperr.ErrConflict, "INVALID_TRANSITION", "verification status does not allow this action")
)
