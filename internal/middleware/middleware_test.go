package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/logging"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/ratelimit"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

func newTokens() *utils.TokenService {
	return utils.NewTokenService(utils.TokenConfig{
		AccessSecret: "test-secret",
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
		Issuer:       "test",
	})
}

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTAuth(t *testing.T) {
	tokens := newTokens()
	access, err := tokens.CreateAccessToken(model.Principal{AccountID: "acc-1", Email: "a@x.io", Role: model.RoleHost})
	require.NoError(t, err)
	refresh, err := tokens.CreateRefreshToken("acc-1", "a@x.io")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing header", header: "", wantErr: errMissingBearer},
		{name: "wrong scheme", header: "Basic abc", wantErr: errMissingBearer},
		{name: "empty token", header: "Bearer ", wantErr: errMissingBearer},
		{name: "garbage", header: "Bearer not.a.jwt", wantErr: errInvalidBearer},
		{name: "refresh token", header: "Bearer " + refresh.Raw, wantErr: errInvalidBearer},
		{name: "valid", header: "Bearer " + access.Raw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			c, rec := newContext(req)

			err := JWTAuth(tokens)(ok)(c)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperr.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			p, found := PrincipalFrom(c)
			require.True(t, found)
			assert.Equal(t, "acc-1", p.AccountID)
			assert.Equal(t, model.RoleHost, p.Role)
		})
	}
}

func TestRequireRole(t *testing.T) {
	t.Run("no principal", func(t *testing.T) {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, RequireRole(model.RoleAdmin)(ok)(c), apperr.ErrUnauthorized)
	})
	t.Run("wrong role", func(t *testing.T) {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		setPrincipal(c, model.Principal{AccountID: "a", Role: model.RoleUser})
		assert.ErrorIs(t, RequireRole(model.RoleAdmin, model.RoleHost)(ok)(c), apperr.ErrForbidden)
	})
	t.Run("allowed", func(t *testing.T) {
		c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		setPrincipal(c, model.Principal{AccountID: "a", Role: model.RoleHost})
		require.NoError(t, RequireRole(model.RoleAdmin, model.RoleHost)(ok)(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

type accountMap map[string]*model.Account

func (m accountMap) GetByID(_ context.Context, id string) (*model.Account, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	acc, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return acc, nil
}

func TestRequireActive(t *testing.T) {
	accounts := accountMap{
		"active":  {ID: "active", Role: model.RoleAdmin},
		"blocked": {ID: "blocked", Role: model.RoleAdmin, IsBlocked: true},
		"demoted": {ID: "demoted", Role: model.RoleUser},
	}
	chain := func(h echo.HandlerFunc) echo.HandlerFunc {
		return RequireActive(accounts)(RequireRole(model.RoleAdmin)(h))
	}

	cases := []struct {
		name string
		id   string
		kind error
		code string
	}{
		{"active account passes", "active", nil, ""},
		{"blocked account is refused", "blocked", apperr.ErrUnauthorized, "ACCOUNT_BLOCKED"},
		{"deleted account is refused", "gone", apperr.ErrUnauthorized, "TOKEN_INVALID"},
		{"stored role overrides the claim", "demoted", apperr.ErrForbidden, "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
			setPrincipal(c, model.Principal{AccountID: tc.id, Role: model.RoleAdmin})
			err := chain(ok)(c)
			if tc.kind == nil {
				require.NoError(t, err)
				assert.Equal(t, http.StatusNoContent, rec.Code)
				return
			}
			require.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.code, apperr.Code(err))
		})
	}

	t.Run("store failure is passed through", func(t *testing.T) {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		setPrincipal(c, model.Principal{AccountID: "broken", Role: model.RoleAdmin})
		err := chain(ok)(c)
		require.Error(t, err)
		assert.Nil(t, apperr.Kind(err))
	})

	t.Run("requires a principal", func(t *testing.T) {
		c, _ := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, chain(ok)(c), apperr.ErrUnauthorized)
	})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, time.Time) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

// kindStatusHandler renders apperr failures the way the API does, reduced to
// the kinds these middlewares produce.
func kindStatusHandler(err error, c echo.Context) {
	status := http.StatusInternalServerError
	switch apperr.Kind(err) {
	case apperr.ErrTooManyRequests:
		status = http.StatusTooManyRequests
	case apperr.ErrUnauthorized:
		status = http.StatusUnauthorized
	case apperr.ErrForbidden:
		status = http.StatusForbidden
	}
	_ = c.JSON(status, echo.Map{"error": apperr.Code(err), "message": apperr.Message(err)})
}

func rateLimitedServer(cfg config.RateLimitConfig, l ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = kindStatusHandler
	g := e.Group("/v1/auth", RateLimit(cfg, l, nil, logging.Discard()))
	g.POST("/signin", ok)
	g.POST("/signup", ok)
	return e
}

func post(e *echo.Echo, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksOverCeiling(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Max: 2, Window: time.Minute, KeyStrategy: "ip_route"}
	e := rateLimitedServer(cfg, ratelimit.NewMemory(cfg.Max, cfg.Window))

	assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.1").Code)

	rec := post(e, "/v1/auth/signin", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"error":"TOO_MANY_REQUESTS"`)
	assert.Contains(t, rec.Body.String(), "retry in 60 seconds")

	// ip_route keys per route and per caller.
	assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signup", "10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.2").Code)
}

func TestRateLimit_ReturnsCategorizedError(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Max: 1, Window: time.Minute}
	mw := RateLimit(cfg, ratelimit.NewMemory(cfg.Max, cfg.Window), nil, logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	c, _ := newContext(req)
	require.NoError(t, mw(ok)(c))

	c, rec := newContext(req)
	err := mw(ok)(c)
	require.ErrorIs(t, err, apperr.ErrTooManyRequests)
	assert.Equal(t, "TOO_MANY_REQUESTS", apperr.Code(err))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, rec.Code, "nothing is written before the error handler runs")
}

func TestRateLimit_IPStrategySharesBudgetAcrossRoutes(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Max: 1, Window: time.Minute, KeyStrategy: "ip"}
	e := rateLimitedServer(cfg, ratelimit.NewMemory(cfg.Max, cfg.Window))

	assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "/v1/auth/signup", "10.0.0.1").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Max: 1, Window: time.Minute}
	e := rateLimitedServer(cfg, failingLimiter{})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.1").Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: false, Max: 1, Window: time.Minute}
	e := rateLimitedServer(cfg, ratelimit.NewMemory(1, time.Minute))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(e, "/v1/auth/signin", "10.0.0.1").Code)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestID(), Logger(logging.NewWithWriter(&buf, "info", "test", "test")))
	e.GET("/ping", ok)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), `"status":204`)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "given-id")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get(echo.HeaderXRequestID))
}
