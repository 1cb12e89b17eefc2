// Package service holds the authentication and host verification use cases.
// It depends only on the store, mail, token and identity interfaces in
// ports.go; concrete adapters are wired in cmd/server.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// Deps are the collaborators of AuthService. Identity, Metrics and Clock are
// optional.
type Deps struct {
	Accounts AccountStore
	Otps     OtpStore
	Resets   ResetStore
	Hasher   Hasher
	Tokens   TokenIssuer
	Mailer   Mailer
	Identity IdentityVerifier
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

// Options tune AuthService policy.
type Options struct {
	OTPTTL            time.Duration
	ResetTTL          time.Duration
	ResetURL          string
	PasswordMinLength int
}

func (o *Options) applyDefaults() {
	if o.OTPTTL <= 0 {
		o.OTPTTL = 5 * time.Minute
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = time.Hour
	}
	if o.PasswordMinLength <= 0 {
		o.PasswordMinLength = 6
	}
}

// AuthService runs sign-up, OTP-gated sign-in, token refresh, OAuth bridging
// and password reset.
type AuthService struct {
	accounts AccountStore
	otps     OtpStore
	resets   ResetStore
	hasher   Hasher
	tokens   TokenIssuer
	mailer   Mailer
	identity IdentityVerifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	opts     Options

	// dummyHash is compared against when no account matches, so unknown
	// emails cost the same as wrong passwords.
	dummyHash string
}

// NewAuthService validates deps and builds the service.
func NewAuthService(d Deps, opts Options) (*AuthService, error) {
	switch {
	case d.Accounts == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("account store is required")
	case d.Otps == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("otp store is required")
	case d.Resets == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("reset store is required")
	case d.Hasher == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("password hasher is required")
	case d.Tokens == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("token issuer is required")
	case d.Mailer == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("mailer is required")
	case d.Logger == nil:
		return nil, oops.In("auth").Code("MISSING_DEPENDENCY").Errorf("logger is required")
	}
	opts.applyDefaults()

	dummy, err := d.Hasher.Hash("timing-equalizer-" + ulid.Make().String())
	if err != nil {
		return nil, oops.In("auth").Code("DUMMY_HASH_FAILED").Wrap(err)
	}
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		accounts:  d.Accounts,
		otps:      d.Otps,
		resets:    d.Resets,
		hasher:    d.Hasher,
		tokens:    d.Tokens,
		mailer:    d.Mailer,
		identity:  d.Identity,
		logger:    d.Logger,
		metrics:   d.Metrics,
		now:       now,
		opts:      opts,
		dummyHash: dummy,
	}, nil
}

// SignupInput is the payload of Signup.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// AuthResult is returned by every flow that ends in a session.
type AuthResult struct {
	Account      model.Account
	AccessToken  utils.Token
	RefreshToken utils.Token
}

// Signup creates an account and mails a login code. No tokens are issued;
// the caller must complete VerifyOtp first.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (acc *model.Account, err error) {
	defer func() { s.observe("signup", err) }()

	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password, s.opts.PasswordMinLength); err != nil {
		return nil, err
	}
	role, err := signupRole(in.Role)
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err, "lookup account")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal(err, "hash password")
	}
	acc = &model.Account{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if role == model.RoleHost {
		acc.VerificationStatus = model.VerificationPending
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, internal(err, "create account")
	}

	// The account exists now; a failed code can be recovered with ResendOtp.
	if err := s.issueOtp(ctx, acc); err != nil {
		apperr.LogError(s.logger, "signup: issue otp failed", err)
	}

	out := acc.WithoutCredentials()
	return &out, nil
}

// Signin checks a password and mails a login code. Only the email is
// returned; tokens are withheld until VerifyOtp. An empty expectedRole
// accepts any role.
func (s *AuthService) Signin(ctx context.Context, email, password string, expectedRole model.Role) (_ string, err error) {
	defer func() { s.observe("signin", err) }()

	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", apperr.Validation("credentials", "email and password are required")
	}

	acc, err := s.accounts.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnCompare(password)
			return "", ErrInvalidCredentials
		}
		return "", internal(err, "lookup account")
	}
	if !acc.HasLocalPassword() {
		s.burnCompare(password)
		return "", ErrOAuthOnly
	}
	ok, err := s.hasher.Compare(password, acc.PasswordHash)
	if err != nil {
		return "", internal(err, "compare password")
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	if acc.IsBlocked {
		return "", ErrAccountBlocked
	}
	if expectedRole != "" && acc.Role != expectedRole {
		return "", ErrRoleMismatch
	}

	if err := s.issueOtp(ctx, acc); err != nil {
		return "", err
	}
	return acc.Email, nil
}

// VerifyOtp consumes a login code and starts a session. The new refresh
// token replaces any earlier one.
func (s *AuthService) VerifyOtp(ctx context.Context, email, code string) (res *AuthResult, err error) {
	defer func() { s.observe("verify_otp", err) }()

	email = model.NormalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return nil, apperr.Validation("otp", "email and code are required")
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internal(err, "lookup account")
	}
	if acc.IsBlocked {
		return nil, ErrAccountBlocked
	}
	if !validateOTP(code) {
		return nil, ErrInvalidOTP
	}

	rec, err := s.otps.FindByEmailAndCode(ctx, email, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, internal(err, "lookup otp")
	}
	if rec.Expired(s.now(), s.opts.OTPTTL) {
		if err := s.otps.Delete(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			apperr.LogError(s.logger, "verify otp: delete expired code failed", err)
		}
		return nil, ErrOTPExpired
	}
	// Only the caller whose delete removes the row may continue.
	if err := s.otps.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidOTP
		}
		return nil, internal(err, "consume otp")
	}

	return s.startSession(ctx, acc)
}

// ResendOtp replaces every outstanding code for email with a fresh one.
func (s *AuthService) ResendOtp(ctx context.Context, email string) (err error) {
	defer func() { s.observe("resend_otp", err) }()

	email = model.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return internal(err, "lookup account")
	}
	if acc.IsBlocked {
		return ErrAccountBlocked
	}
	if err := s.otps.DeleteAllFor(ctx, email); err != nil {
		return internal(err, "purge otps")
	}
	return s.issueOtp(ctx, acc)
}

// RefreshAccessToken exchanges the live refresh token for a new access
// token. The role comes from the store, not the token. The refresh token is
// not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (tok utils.Token, err error) {
	defer func() { s.observe("refresh", err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return utils.Token{}, ErrRefreshMissing
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return utils.Token{}, ErrRefreshInvalid
	}

	acc, err := s.accounts.GetCredentialsByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.Token{}, ErrRefreshInvalid
		}
		return utils.Token{}, internal(err, "lookup account")
	}
	if acc.IsBlocked {
		return utils.Token{}, ErrAccountBlocked
	}
	presented := utils.HashToken(refreshToken)
	if acc.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(acc.RefreshTokenHash)) != 1 {
		return utils.Token{}, ErrRefreshInvalid
	}

	tok, err = s.tokens.CreateAccessToken(model.Principal{AccountID: acc.ID, Email: acc.Email, Role: acc.Role})
	if err != nil {
		return utils.Token{}, internal(err, "sign access token")
	}
	return tok, nil
}

// Logout revokes the account's refresh token.
func (s *AuthService) Logout(ctx context.Context, accountID string) (err error) {
	defer func() { s.observe("logout", err) }()

	if err := s.accounts.SetRefreshTokenHash(ctx, accountID, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return internal(err, "clear refresh token")
	}
	return nil
}

// Me returns the credential-free account of the caller.
func (s *AuthService) Me(ctx context.Context, accountID string) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internal(err, "lookup account")
	}
	if acc.IsBlocked {
		return nil, ErrAccountBlocked
	}
	return acc, nil
}

// issueOtp stores a fresh code for acc and mails it. Mail failures are
// logged only.
func (s *AuthService) issueOtp(ctx context.Context, acc *model.Account) error {
	rec, err := s.otps.Create(ctx, acc.Email)
	if err != nil {
		return internal(err, "create otp")
	}
	err = s.mailer.SendOtpMail(ctx, OtpMail{To: acc.Email, Name: acc.Name, Code: rec.Code, TTL: s.opts.OTPTTL})
	s.metrics.Mail("otp", err)
	if err != nil {
		s.logger.Warn("otp mail dispatch failed", "account_id", acc.ID, "error", err)
	}
	return nil
}

// startSession mints an access/refresh pair and records the refresh hash in
// one write.
func (s *AuthService) startSession(ctx context.Context, acc *model.Account) (*AuthResult, error) {
	access, err := s.tokens.CreateAccessToken(model.Principal{AccountID: acc.ID, Email: acc.Email, Role: acc.Role})
	if err != nil {
		return nil, internal(err, "sign access token")
	}
	refresh, err := s.tokens.CreateRefreshToken(acc.ID, acc.Email)
	if err != nil {
		return nil, internal(err, "sign refresh token")
	}
	if err := s.accounts.SetRefreshTokenHash(ctx, acc.ID, utils.HashToken(refresh.Raw)); err != nil {
		return nil, internal(err, "store refresh token")
	}
	return &AuthResult{Account: acc.WithoutCredentials(), AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) burnCompare(password string) {
	_, _ = s.hasher.Compare(password, s.dummyHash)
}

func (s *AuthService) observe(op string, err error) {
	s.metrics.Operation(op, outcome(err))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apperr.Kind(err); k != nil {
		return strings.ReplaceAll(k.Error(), " ", "_")
	}
	return "error"
}

// internal wraps an unexpected failure. It carries no kind, so the transport
// layer reports it as a 500.
func internal(err error, op string) error {
	return oops.In("auth").Code("INTERNAL").With("operation", op).Wrap(err)
}

// CreateAdmin provisions an admin account. It is only reachable from the
// command line; Signup refuses the admin role.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (*model.Account, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	email, err = validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password, s.opts.PasswordMinLength); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal(err, "hash password")
	}
	acc := &model.Account{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsVerified:   true,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, internal(err, "create admin")
	}
	out := acc.WithoutCredentials()
	return &out, nil
}
