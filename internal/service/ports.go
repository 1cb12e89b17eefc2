package service

import (
	"context"
	"time"

	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// AccountStore persists accounts. Reads other than the *Credentials* variants
// must return PasswordHash and RefreshTokenHash empty.
type AccountStore interface {
	Create(ctx context.Context, a *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*model.Account, error)
	GetCredentialsByID(ctx context.Context, id string) (*model.Account, error)
	SetRefreshTokenHash(ctx context.Context, id, hash string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
	TransitionVerification(ctx context.Context, id string, t model.VerificationTransition) (*model.Account, error)
	ListHosts(ctx context.Context, status model.VerificationStatus) ([]model.Account, error)
}

// OtpStore persists login codes. Delete must report repository.ErrNotFound
// when the code was already consumed.
type OtpStore interface {
	Create(ctx context.Context, email string) (*model.OneTimeCode, error)
	FindByEmailAndCode(ctx context.Context, email, code string) (*model.OneTimeCode, error)
	Delete(ctx context.Context, id string) error
	DeleteAllFor(ctx context.Context, email string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ResetStore persists password reset artifacts.
type ResetStore interface {
	Create(ctx context.Context, rec *model.PasswordReset) error
	GetByTokenHash(ctx context.Context, hash string) (*model.PasswordReset, error)
	// Delete returns repository.ErrNotFound when the reset was already removed.
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, digest string) (bool, error)
}

// TokenIssuer mints and checks the service's own JWTs.
type TokenIssuer interface {
	CreateAccessToken(p model.Principal) (utils.Token, error)
	CreateRefreshToken(accountID, email string) (utils.Token, error)
	VerifyRefreshToken(raw string) (utils.RefreshClaims, error)
}

// OtpMail is the payload of a login code mail.
type OtpMail struct {
	To   string        `json:"to"`
	Name string        `json:"name"`
	Code string        `json:"code"`
	TTL  time.Duration `json:"ttl"`
}

// ResetMail is the payload of a password reset mail.
type ResetMail struct {
	To        string    `json:"to"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Mailer dispatches outbound mail. Failures never roll back the artifact
// being mailed; the caller only logs them.
type Mailer interface {
	SendOtpMail(ctx context.Context, m OtpMail) error
	SendResetMail(ctx context.Context, m ResetMail) error
}

// ExternalIdentity is what an identity provider vouches for.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// IdentityVerifier checks a third-party access token.
type IdentityVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (ExternalIdentity, error)
}
