package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-auth/internal/logging"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository/memory"
	"github.com/iliyamo/homestay-auth/internal/service"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMailer struct {
	mu     sync.Mutex
	otps   []service.OtpMail
	resets []service.ResetMail
	fail   error
}

func (m *fakeMailer) SendOtpMail(_ context.Context, msg service.OtpMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps = append(m.otps, msg)
	return m.fail
}

func (m *fakeMailer) SendResetMail(_ context.Context, msg service.ResetMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, msg)
	return m.fail
}

func (m *fakeMailer) otpCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.otps)
}

func (m *fakeMailer) lastCode(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		if m.otps[i].To == email {
			return m.otps[i].Code
		}
	}
	t.Fatalf("no otp mailed to %s", email)
	return ""
}

func (m *fakeMailer) lastReset(t *testing.T) service.ResetMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets)
	return m.resets[len(m.resets)-1]
}

type fakeIdentity struct {
	ids map[string]service.ExternalIdentity
}

func (f *fakeIdentity) VerifyAccessToken(_ context.Context, token string) (service.ExternalIdentity, error) {
	id, ok := f.ids[token]
	if !ok {
		return service.ExternalIdentity{}, errors.New("token rejected")
	}
	return id, nil
}

type fixture struct {
	svc      *service.AuthService
	accounts *memory.Accounts
	otps     *memory.Otps
	resets   *memory.Resets
	mailer   *fakeMailer
	identity *fakeIdentity
	tokens   *utils.TokenService
	clock    *fakeClock
}

const testOTPTTL = 5 * time.Minute

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &fixture{
		accounts: memory.NewAccounts(clock.Now),
		otps:     memory.NewOtps(clock.Now),
		resets:   memory.NewResets(),
		mailer:   &fakeMailer{},
		identity: &fakeIdentity{ids: map[string]service.ExternalIdentity{}},
		clock:    clock,
		tokens: utils.NewTokenService(utils.TokenConfig{
			AccessSecret:  "access-secret",
			RefreshSecret: "refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "homestay-auth",
		}).WithClock(clock.Now),
	}
	svc, err := service.NewAuthService(service.Deps{
		Accounts: f.accounts,
		Otps:     f.otps,
		Resets:   f.resets,
		Hasher:   utils.NewPasswordHasher(4),
		Tokens:   f.tokens,
		Mailer:   f.mailer,
		Identity: f.identity,
		Logger:   logging.Discard(),
		Clock:    clock.Now,
	}, service.Options{
		OTPTTL:            testOTPTTL,
		ResetTTL:          time.Hour,
		ResetURL:          "https://homestay.test/reset",
		PasswordMinLength: 6,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// signup creates an account and returns it.
func (f *fixture) signup(t *testing.T, email, password string, role model.Role) *model.Account {
	t.Helper()
	acc, err := f.svc.Signup(context.Background(), service.SignupInput{
		Name: "Test " + string(role), Email: email, Password: password, Role: string(role),
	})
	require.NoError(t, err)
	return acc
}

// login runs signin and OTP verification and returns the session.
func (f *fixture) login(t *testing.T, email, password string) *service.AuthResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Signin(ctx, email, password, "")
	require.NoError(t, err)
	res, err := f.svc.VerifyOtp(ctx, email, f.mailer.lastCode(t, email))
	require.NoError(t, err)
	return res
}
