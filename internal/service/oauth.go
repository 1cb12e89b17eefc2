package service

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// OAuthInput is the payload of OAuthBridge.
type OAuthInput struct {
	Name        string
	Email       string
	AccessToken string
	Avatar      string
}

// OAuthBridge signs in with a third-party access token. The provider has
// already proven control of the email, so no OTP is sent. Unknown emails get
// a new account with an unusable password. expectedRole scopes the flow: a
// host-scoped bridge creates pending hosts and rejects other roles.
func (s *AuthService) OAuthBridge(ctx context.Context, in OAuthInput, expectedRole model.Role) (res *AuthResult, err error) {
	defer func() { s.observe("oauth", err) }()

	email := model.NormalizeEmail(in.Email)
	token := strings.TrimSpace(in.AccessToken)
	if email == "" || token == "" {
		return nil, apperr.Validation("access_token", "email and access token are required")
	}
	if s.identity == nil {
		return nil, ErrOAuthRejected
	}

	ident, err := s.identity.VerifyAccessToken(ctx, token)
	if err != nil {
		s.logger.Info("oauth token rejected", "error", err)
		return nil, ErrOAuthRejected
	}
	if !ident.EmailVerified || model.NormalizeEmail(ident.Email) != email {
		return nil, ErrOAuthRejected
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		acc, err = s.createOAuthAccount(ctx, in, ident, email, expectedRole)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, internal(err, "lookup account")
	}

	if acc.IsBlocked {
		return nil, ErrAccountBlocked
	}
	if expectedRole != "" && acc.Role != expectedRole {
		return nil, ErrRoleMismatch
	}
	return s.startSession(ctx, acc)
}

func (s *AuthService) createOAuthAccount(ctx context.Context, in OAuthInput, ident ExternalIdentity, email string, expectedRole model.Role) (*model.Account, error) {
	role := expectedRole
	switch role {
	case "":
		role = model.RoleUser
	case model.RoleAdmin:
		// Admins are never created through a social login.
		return nil, ErrInvalidCredentials
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = ident.Name
	}
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = ident.Picture
	}

	secret, err := utils.RandomHex(32)
	if err != nil {
		return nil, internal(err, "generate synthetic password")
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, internal(err, "hash synthetic password")
	}

	acc := &model.Account{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsOAuthUser:  true,
		Avatar:       avatar,
	}
	if role == model.RoleHost {
		acc.VerificationStatus = model.VerificationPending
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// Lost a creation race; use the winner.
			existing, gerr := s.accounts.GetByEmail(ctx, email)
			if gerr != nil {
				return nil, internal(gerr, "reload account")
			}
			return existing, nil
		}
		return nil, internal(err, "create oauth account")
	}
	s.logger.Info("oauth account created", "account_id", acc.ID, "role", acc.Role)
	out := acc.WithoutCredentials()
	return &out, nil
}
