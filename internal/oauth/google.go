// Package oauth verifies third-party access tokens for the social sign-in
// bridge.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/iliyamo/homestay-auth/internal/config"
	"github.com/iliyamo/homestay-auth/internal/service"
)

// ErrInvalidToken is returned when the provider does not accept the token.
var ErrInvalidToken = errors.New("oauth: token rejected by provider")

// userInfo is the OpenID Connect userinfo response. Google sends
// email_verified as a bool, some proxies as a string.
type userInfo struct {
	Sub           string          `json:"sub"`
	Email         string          `json:"email"`
	EmailVerified json.RawMessage `json:"email_verified"`
	Name          string          `json:"name"`
	Picture       string          `json:"picture"`
}

// GoogleVerifier resolves a Google access token through the userinfo
// endpoint.
type GoogleVerifier struct {
	endpoint string
	client   *http.Client
}

// NewGoogleVerifier builds a verifier from cfg.
func NewGoogleVerifier(cfg config.OAuthConfig) *GoogleVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GoogleVerifier{
		endpoint: cfg.GoogleUserInfoURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// VerifyAccessToken implements service.IdentityVerifier.
func (g *GoogleVerifier) VerifyAccessToken(ctx context.Context, token string) (service.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return service.ExternalIdentity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return service.ExternalIdentity{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return service.ExternalIdentity{}, fmt.Errorf("oauth: userinfo status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return service.ExternalIdentity{}, ErrInvalidToken
	}
	return service.ExternalIdentity{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: parseVerified(info.EmailVerified),
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

func parseVerified(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseBool(s)
		return v
	}
	return false
}
