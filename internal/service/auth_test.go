package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/logging"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository/memory"
	"github.com/iliyamo/homestay-auth/internal/service"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

func TestNewAuthService_NilDependencies(t *testing.T) {
	full := func() service.Deps {
		return service.Deps{
			Accounts: memory.NewAccounts(nil),
			Otps:     memory.NewOtps(nil),
			Resets:   memory.NewResets(),
			Hasher:   utils.NewPasswordHasher(4),
			Tokens:   utils.NewTokenService(utils.TokenConfig{AccessSecret: "s"}),
			Mailer:   &fakeMailer{},
			Logger:   logging.Discard(),
		}
	}
	tests := []struct {
		name   string
		mutate func(*service.Deps)
		want   string
	}{
		{"accounts", func(d *service.Deps) { d.Accounts = nil }, "account store"},
		{"otps", func(d *service.Deps) { d.Otps = nil }, "otp store"},
		{"resets", func(d *service.Deps) { d.Resets = nil }, "reset store"},
		{"hasher", func(d *service.Deps) { d.Hasher = nil }, "hasher"},
		{"tokens", func(d *service.Deps) { d.Tokens = nil }, "token issuer"},
		{"mailer", func(d *service.Deps) { d.Mailer = nil }, "mailer"},
		{"logger", func(d *service.Deps) { d.Logger = nil }, "logger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := full()
			tt.mutate(&d)
			svc, err := service.NewAuthService(d, service.Options{})
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("host starts pending and gets a code", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleHost)

		assert.Equal(t, model.VerificationPending, acc.VerificationStatus)
		assert.False(t, acc.IsVerified)
		assert.Empty(t, acc.PasswordHash)
		assert.Len(t, f.mailer.lastCode(t, "a@x.com"), utils.OTPDigits)
		assert.Equal(t, 1, f.otps.Count("a@x.com"))
	})

	t.Run("user has no verification status", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "u@x.com", "secret1", "")
		assert.Equal(t, model.RoleUser, acc.Role)
		assert.Equal(t, model.VerificationNone, acc.VerificationStatus)
	})

	t.Run("no plaintext password on any read path", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)

		byID, err := f.accounts.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		byEmail, err := f.accounts.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		creds, err := f.accounts.GetCredentialsByID(ctx, acc.ID)
		require.NoError(t, err)

		assert.Empty(t, byID.PasswordHash)
		assert.Empty(t, byEmail.PasswordHash)
		assert.NotEqual(t, "p1p1p1", creds.PasswordHash)
		assert.True(t, strings.HasPrefix(creds.PasswordHash, "$2"))
	})

	t.Run("duplicate email conflicts regardless of case", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleHost)

		_, err := f.svc.Signup(ctx, service.SignupInput{Name: "B", Email: " A@X.com", Password: "p1p1p1"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.ErrorIs(t, err, service.ErrEmailExists)
	})

	t.Run("no tokens are stored at signup", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		creds, err := f.accounts.GetCredentialsByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, creds.RefreshTokenHash)
	})

	t.Run("mail failure does not fail signup", func(t *testing.T) {
		f := newFixture(t)
		f.mailer.fail = errors.New("smtp down")
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		assert.Equal(t, 1, f.otps.Count("a@x.com"))
	})

	invalid := []struct {
		name string
		in   service.SignupInput
	}{
		{"missing name", service.SignupInput{Email: "a@x.com", Password: "p1p1p1"}},
		{"bad email", service.SignupInput{Name: "A", Email: "not-an-email", Password: "p1p1p1"}},
		{"email without domain dot", service.SignupInput{Name: "A", Email: "a@x", Password: "p1p1p1"}},
		{"short password", service.SignupInput{Name: "A", Email: "a@x.com", Password: "p1"}},
		{"long password", service.SignupInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("x", 73)}},
		{"admin role", service.SignupInput{Name: "A", Email: "a@x.com", Password: "p1p1p1", Role: "admin"}},
		{"unknown role", service.SignupInput{Name: "A", Email: "a@x.com", Password: "p1p1p1", Role: "owner"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Signup(ctx, tt.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Zero(t, f.mailer.otpCount())
		})
	}
}

func TestSignin(t *testing.T) {
	ctx := context.Background()

	t.Run("success mails a fresh code and returns the email", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		signupCode := f.mailer.lastCode(t, "a@x.com")

		email, err := f.svc.Signin(ctx, "A@x.com", "p1p1p1", "")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", email)
		assert.Equal(t, 2, f.mailer.otpCount())
		assert.Equal(t, 1, f.otps.Count("a@x.com"))

		if next := f.mailer.lastCode(t, "a@x.com"); next != signupCode {
			_, err = f.svc.VerifyOtp(ctx, "a@x.com", signupCode)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		}
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)

		_, errWrong := f.svc.Signin(ctx, "a@x.com", "nope-nope", "")
		_, errMissing := f.svc.Signin(ctx, "ghost@x.com", "nope-nope", "")
		assert.ErrorIs(t, errWrong, service.ErrInvalidCredentials)
		assert.ErrorIs(t, errMissing, service.ErrInvalidCredentials)
		assert.Equal(t, apperr.Message(errWrong), apperr.Message(errMissing))
	})

	t.Run("blocked account gets no code", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		require.NoError(t, f.accounts.SetBlocked(ctx, acc.ID, true))
		require.NoError(t, f.otps.DeleteAllFor(ctx, "a@x.com"))
		before := f.mailer.otpCount()

		_, err := f.svc.Signin(ctx, "a@x.com", "p1p1p1", "")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		assert.ErrorIs(t, err, service.ErrAccountBlocked)
		assert.Equal(t, before, f.mailer.otpCount())
		assert.Zero(t, f.otps.Count("a@x.com"))
	})

	t.Run("role scoped signin", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "u@x.com", "p1p1p1", model.RoleUser)
		f.signup(t, "h@x.com", "p1p1p1", model.RoleHost)

		_, err := f.svc.Signin(ctx, "u@x.com", "p1p1p1", model.RoleHost)
		assert.ErrorIs(t, err, service.ErrRoleMismatch)

		_, err = f.svc.Signin(ctx, "h@x.com", "p1p1p1", model.RoleHost)
		assert.NoError(t, err)
	})

	t.Run("empty credentials are a validation error", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Signin(ctx, "", "", "")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestVerifyOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a session", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleHost)

		res, err := f.svc.VerifyOtp(ctx, "a@x.com", f.mailer.lastCode(t, "a@x.com"))
		require.NoError(t, err)
		assert.Equal(t, acc.ID, res.Account.ID)
		assert.Empty(t, res.Account.RefreshTokenHash)

		p, err := f.tokens.VerifyAccessToken(res.AccessToken.Raw)
		require.NoError(t, err)
		assert.Equal(t, model.RoleHost, p.Role)

		creds, err := f.accounts.GetCredentialsByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, utils.HashToken(res.RefreshToken.Raw), creds.RefreshTokenHash)
		assert.Zero(t, f.otps.Count("a@x.com"), "code is single use")
	})

	t.Run("code cannot be reused", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		code := f.mailer.lastCode(t, "a@x.com")

		_, err := f.svc.VerifyOtp(ctx, "a@x.com", code)
		require.NoError(t, err)
		_, err = f.svc.VerifyOtp(ctx, "a@x.com", code)
		assert.ErrorIs(t, err, service.ErrInvalidOTP)
	})

	t.Run("expired code fails and is removed", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		code := f.mailer.lastCode(t, "a@x.com")

		f.clock.Advance(testOTPTTL + time.Second)
		_, err := f.svc.VerifyOtp(ctx, "a@x.com", code)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		assert.ErrorIs(t, err, service.ErrOTPExpired)
		assert.Zero(t, f.otps.Count("a@x.com"))
	})

	t.Run("exactly at ttl is still valid", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		f.clock.Advance(testOTPTTL)
		_, err := f.svc.VerifyOtp(ctx, "a@x.com", f.mailer.lastCode(t, "a@x.com"))
		assert.NoError(t, err)
	})

	t.Run("new session invalidates the previous refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		first := f.login(t, "a@x.com", "p1p1p1")
		second := f.login(t, "a@x.com", "p1p1p1")

		_, err := f.svc.RefreshAccessToken(ctx, first.RefreshToken.Raw)
		assert.ErrorIs(t, err, apperr.ErrForbidden)

		_, err = f.svc.RefreshAccessToken(ctx, second.RefreshToken.Raw)
		assert.NoError(t, err)
	})

	t.Run("wrong code, unknown email and blocked account", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		code := f.mailer.lastCode(t, "a@x.com")
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		_, err := f.svc.VerifyOtp(ctx, "a@x.com", wrong)
		assert.ErrorIs(t, err, service.ErrInvalidOTP)
		_, err = f.svc.VerifyOtp(ctx, "a@x.com", "12ab")
		assert.ErrorIs(t, err, service.ErrInvalidOTP)
		_, err = f.svc.VerifyOtp(ctx, "ghost@x.com", code)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		require.NoError(t, f.accounts.SetBlocked(ctx, acc.ID, true))
		_, err = f.svc.VerifyOtp(ctx, "a@x.com", code)
		assert.ErrorIs(t, err, service.ErrAccountBlocked)
	})

	t.Run("concurrent verification has one winner", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		code := f.mailer.lastCode(t, "a@x.com")

		var wins, losses atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.VerifyOtp(ctx, "a@x.com", code)
				if err == nil {
					wins.Add(1)
				} else if errors.Is(err, apperr.ErrUnauthorized) {
					losses.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, wins.Load())
		assert.EqualValues(t, 7, losses.Load())
	})
}

func TestResendOtp(t *testing.T) {
	ctx := context.Background()

	t.Run("twice leaves exactly one working code", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		original := f.mailer.lastCode(t, "a@x.com")

		require.NoError(t, f.svc.ResendOtp(ctx, "a@x.com"))
		first := f.mailer.lastCode(t, "a@x.com")
		require.NoError(t, f.svc.ResendOtp(ctx, "a@x.com"))
		latest := f.mailer.lastCode(t, "a@x.com")

		assert.Equal(t, 1, f.otps.Count("a@x.com"))
		for _, stale := range []string{original, first} {
			if stale == latest {
				continue
			}
			_, err := f.svc.VerifyOtp(ctx, "a@x.com", stale)
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		}
		_, err := f.svc.VerifyOtp(ctx, "a@x.com", latest)
		assert.NoError(t, err)
	})

	t.Run("unknown and blocked", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)

		assert.ErrorIs(t, f.svc.ResendOtp(ctx, "ghost@x.com"), apperr.ErrNotFound)

		require.NoError(t, f.accounts.SetBlocked(ctx, acc.ID, true))
		assert.ErrorIs(t, f.svc.ResendOtp(ctx, "a@x.com"), service.ErrAccountBlocked)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("returns an access token with the stored role", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "h@x.com", "p1p1p1", model.RoleHost)
		sess := f.login(t, "h@x.com", "p1p1p1")

		tok, err := f.svc.RefreshAccessToken(ctx, sess.RefreshToken.Raw)
		require.NoError(t, err)
		p, err := f.tokens.VerifyAccessToken(tok.Raw)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, p.AccountID)
		assert.Equal(t, model.RoleHost, p.Role)

		_, err = f.svc.RefreshAccessToken(ctx, sess.RefreshToken.Raw)
		assert.NoError(t, err, "plain refresh does not rotate")
	})

	t.Run("missing and malformed tokens are forbidden", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RefreshAccessToken(ctx, "  ")
		assert.ErrorIs(t, err, service.ErrRefreshMissing)
		assert.ErrorIs(t, err, apperr.ErrForbidden)

		_, err = f.svc.RefreshAccessToken(ctx, "garbage")
		assert.ErrorIs(t, err, service.ErrRefreshInvalid)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		sess := f.login(t, "a@x.com", "p1p1p1")

		_, err := f.svc.RefreshAccessToken(ctx, sess.AccessToken.Raw)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		f := newFixture(t)
		f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		sess := f.login(t, "a@x.com", "p1p1p1")

		f.clock.Advance(8 * 24 * time.Hour)
		_, err := f.svc.RefreshAccessToken(ctx, sess.RefreshToken.Raw)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("blocked account", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		sess := f.login(t, "a@x.com", "p1p1p1")
		require.NoError(t, f.accounts.SetBlocked(ctx, acc.ID, true))

		_, err := f.svc.RefreshAccessToken(ctx, sess.RefreshToken.Raw)
		assert.ErrorIs(t, err, service.ErrAccountBlocked)
	})

	t.Run("logout revokes", func(t *testing.T) {
		f := newFixture(t)
		acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
		sess := f.login(t, "a@x.com", "p1p1p1")

		require.NoError(t, f.svc.Logout(ctx, acc.ID))
		_, err := f.svc.RefreshAccessToken(ctx, sess.RefreshToken.Raw)
		assert.ErrorIs(t, err, service.ErrRefreshInvalid)

		assert.ErrorIs(t, f.svc.Logout(ctx, "missing"), apperr.ErrNotFound)
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)

	me, err := f.svc.Me(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)
	assert.Empty(t, me.PasswordHash)

	_, err = f.svc.Me(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrAccountNotFound)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acc, err := f.svc.CreateAdmin(ctx, "Root", "root@x.com", "adminpass")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, acc.Role)

	_, err = f.svc.Signin(ctx, "root@x.com", "adminpass", model.RoleAdmin)
	assert.NoError(t, err)

	_, err = f.svc.CreateAdmin(ctx, "Root", "root@x.com", "adminpass")
	assert.ErrorIs(t, err, service.ErrEmailExists)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signup(t, "a@x.com", "p1p1p1", model.RoleUser)
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@x.com"))

	res, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Otps)
	assert.Zero(t, res.Resets)

	f.clock.Advance(2 * time.Hour)
	res, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Otps)
	assert.EqualValues(t, 1, res.Resets)
}
