package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/middleware"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/service"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// requestTimeout caps the store and mail work behind one request.
const requestTimeout = 10 * time.Second

// AuthHandler serves the credential, OTP, token and OAuth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler wires the handler to the auth service.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ----- DTOs -----

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // user | host
}
type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type otpReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}
type emailReq struct {
	Email string `json:"email"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type oauthReq struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	Avatar      string `json:"avatar"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Account model.PublicAccount `json:"account"`
	Access  tokenPart           `json:"access"`
	Refresh tokenPart           `json:"refresh"`
}

// part exposes only the raw token and its expiry; claims stay server side.
func part(t utils.Token) tokenPart {
	return tokenPart{Token: t.Raw, Expires: t.ExpiresAt}
}

func toAuthResp(res *service.AuthResult) authResp {
	return authResp{Account: res.Account.Public(), Access: part(res.AccessToken), Refresh: part(res.RefreshToken)}
}

// requestCtx derives the per-request deadline from the client's context so a
// dropped connection also cancels the work.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Signup registers a user or host and mails the first login code. No tokens
// are issued until the code is verified.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	// Validation, duplicate email and role checks all live in the service; its
	// errors carry their HTTP kind and go straight to the error handler.
	acc, err := h.Auth.Signup(ctx, service.SignupInput{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"account": acc.Public(),
		"message": "verification code sent",
	})
}

// Signin returns a handler for the password step scoped to role. An empty
// role accepts any account.
func (h *AuthHandler) Signin(role model.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req signinReq
		if err := c.Bind(&req); err != nil {
			return errBadBody
		}
		ctx, cancel := requestCtx(c)
		defer cancel()

		// A correct password only earns a mailed code. The session starts
		// in VerifyOtp.
		email, err := h.Auth.Signin(ctx, req.Email, req.Password, role)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"email": email, "message": "verification code sent"})
	}
}

// VerifyOtp exchanges a login code for an access and refresh token pair.
func (h *AuthHandler) VerifyOtp(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	// The code is consumed on success; a second submit of the same code fails.
	res, err := h.Auth.VerifyOtp(ctx, req.Email, req.OTP)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// ResendOtp replaces the outstanding code with a fresh one.
func (h *AuthHandler) ResendOtp(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.ResendOtp(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "verification code sent"})
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	tok, err := h.Auth.RefreshAccessToken(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"access": part(tok)})
}

// OAuthGoogle returns the Google sign-in handler scoped to role. The access
// token is checked against Google before any account is created or linked,
// and a verified Google identity skips the OTP step.
func (h *AuthHandler) OAuthGoogle(role model.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req oauthReq
		if err := c.Bind(&req); err != nil {
			return errBadBody
		}
		ctx, cancel := requestCtx(c)
		defer cancel()

		res, err := h.Auth.OAuthBridge(ctx, service.OAuthInput{
			Name:        req.Name,
			Email:       req.Email,
			AccessToken: req.AccessToken,
			Avatar:      req.Avatar,
		}, role)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, toAuthResp(res))
	}
}

// ForgotPassword mails a single-use reset link.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reset link sent"})
}

// ResetPassword redeems a reset token. Existing sessions end with it.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Logout drops the caller's refresh token. The access token stays valid
// until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	// Set by JWTAuth; missing only if the route was mounted without it.
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, p.AccountID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account as currently stored.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acc, err := h.Auth.Me(ctx, p.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Public())
}
