// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/handler"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/middleware"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/ratelimit"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth     *handler.AuthHandler
	Host     *handler.HostHandler
	Admin    *handler.AdminHandler
	Tokens   middleware.AccessVerifier
	Accounts middleware.AccountLookup
	Limiter  ratelimit.Limiter
	RateCfg  config.RateLimitConfig
	Metrics  *metrics.Metrics
	Exporter http.Handler // /metrics; omitted when nil
	DB       handler.Pinger
	Logger   *slog.Logger
}

// New returns an Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Logger)
	e.Use(echomw.Recover(), middleware.RequestID(), middleware.Logger(d.Logger))

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterHost(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	if d.Exporter != nil {
		e.GET("/metrics", echo.WrapHandler(d.Exporter))
	}
}

// RegisterAuth registers the sign-up, sign-in, token and password routes.
// Every credential or code endpoint sits behind the rate limiter.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := middleware.RateLimit(d.RateCfg, d.Limiter, d.Metrics, d.Logger)
	a := d.Auth

	g := e.Group("/v1/auth", limit)
	g.POST("/signup", a.Signup)
	g.POST("/signin", a.Signin(""))
	g.POST("/verify-otp", a.VerifyOtp)
	g.POST("/resend-otp", a.ResendOtp)
	g.POST("/refresh", a.Refresh)
	g.POST("/oauth/google", a.OAuthGoogle(""))
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	host := e.Group("/v1/host/auth", limit)
	host.POST("/signin", a.Signin(model.RoleHost))
	host.POST("/oauth/google", a.OAuthGoogle(model.RoleHost))

	admin := e.Group("/v1/admin/auth", limit)
	admin.POST("/signin", a.Signin(model.RoleAdmin))

	signedIn := authenticated(d)
	g.POST("/logout", a.Logout, signedIn...)
	e.GET("/v1/me", a.Me, signedIn...)
}

// RegisterHost registers a host's own verification routes.
func RegisterHost(e *echo.Echo, d Deps) {
	g := e.Group("/v1/host", append(authenticated(d), middleware.RequireRole(model.RoleHost))...)
	g.GET("/verification", d.Host.Status)
	g.POST("/verification/reapply", d.Host.Reapply)
}

// RegisterAdmin registers host review and account administration.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin", append(authenticated(d), middleware.RequireRole(model.RoleAdmin))...)
	g.GET("/hosts", d.Admin.ListHosts)
	g.POST("/hosts/:id/approve", d.Admin.Approve)
	g.POST("/hosts/:id/reject", d.Admin.Reject)
	g.POST("/accounts/:id/block", d.Admin.Block)
	g.POST("/accounts/:id/unblock", d.Admin.Unblock)
}

// authenticated is the chain for signed-in routes: a valid access token for
// an account that still exists and is not blocked.
func authenticated(d Deps) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(d.Tokens), middleware.RequireActive(d.Accounts)}
}
