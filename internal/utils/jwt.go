package utils // package utils provides helpers for password hashing, token creation and random codes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/homestay-auth/internal/model"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, unexpected algorithm, malformed payload, wrong type or expiry.
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Token is a signed JWT together with its expiry.
type Token struct {
	Raw       string
	ExpiresAt time.Time
}

// AccessClaims is the payload of an access token. It carries the role so
// downstream authorization does not need a store lookup.
type AccessClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Type  string     `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It deliberately omits the
// role; the role is re-read from the store on every refresh.
type RefreshClaims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string // defaults to AccessSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService signs and verifies HS256 access and refresh tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenService builds a TokenService from cfg.
func NewTokenService(cfg TokenConfig) *TokenService {
	refresh := cfg.RefreshSecret
	if refresh == "" {
		refresh = cfg.AccessSecret
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// CreateAccessToken signs a short-lived token for p.
func (s *TokenService) CreateAccessToken(p model.Principal) (Token, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		Email: p.Email,
		Role:  p.Role,
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AccountID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return Token{}, fmt.Errorf("sign access token: %w", err)
	}
	return Token{Raw: signed, ExpiresAt: exp}, nil
}

// CreateRefreshToken signs a long-lived token carrying identity only. Every
// token gets a random jti so two tokens minted in the same second differ.
func (s *TokenService) CreateRefreshToken(accountID, email string) (Token, error) {
	now := s.now().UTC()
	exp := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		Email: email,
		Type:  tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return Token{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Token{Raw: signed, ExpiresAt: exp}, nil
}

// VerifyAccessToken validates raw and returns the principal it names.
func (s *TokenService) VerifyAccessToken(raw string) (model.Principal, error) {
	var claims AccessClaims
	if err := s.parse(raw, &claims, s.accessSecret); err != nil {
		return model.Principal{}, err
	}
	if claims.Type != tokenTypeAccess || claims.Subject == "" {
		return model.Principal{}, ErrInvalidToken
	}
	if _, ok := model.ParseRole(string(claims.Role)); !ok {
		return model.Principal{}, ErrInvalidToken
	}
	return model.Principal{AccountID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// VerifyRefreshToken validates raw and returns its claims.
func (s *TokenService) VerifyRefreshToken(raw string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(raw, &claims, s.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.Type != tokenTypeRefresh || claims.Subject == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(raw string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the SHA-256 hex digest of a raw token. Only this digest is
// persisted, so a leaked row cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
