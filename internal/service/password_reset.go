package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

const resetTokenBytes = 32

// ForgotPassword mails a single-use reset link. Any earlier reset for the
// account stops working.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer func() { s.observe("forgot_password", err) }()

	email, err = validateEmail(email)
	if err != nil {
		return err
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
	if acc.IsOAuthUser {
		return ErrOAuthOnly
	}

	raw, err := utils.RandomHex(resetTokenBytes)
	if err != nil {
		return internal(err, "generate reset token")
	}
	now := s.now().UTC()
	rec := &model.PasswordReset{
		ID:        ulid.Make().String(),
		AccountID: acc.ID,
		TokenHash: utils.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.ResetTTL),
	}
	if err := s.resets.Create(ctx, rec); err != nil {
		return internal(err, "store reset")
	}

	err = s.mailer.SendResetMail(ctx, ResetMail{
		To:        acc.Email,
		Name:      acc.Name,
		Link:      resetLink(s.opts.ResetURL, raw),
		ExpiresAt: rec.ExpiresAt,
	})
	s.metrics.Mail("reset", err)
	if err != nil {
		s.logger.Warn("reset mail dispatch failed", "account_id", acc.ID, "error", err)
	}
	return nil
}

// ResetPassword sets a new password from a reset token. The account's
// refresh token is cleared in the same write, ending every session.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("token", "reset token is required")
	}
	if err := validatePassword(newPassword, s.opts.PasswordMinLength); err != nil {
		return err
	}

	rec, err := s.resets.GetByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetInvalid
		}
		return internal(err, "lookup reset")
	}
	if rec.Expired(s.now()) {
		if err := s.resets.Delete(ctx, rec.ID); err != nil {
			apperr.LogError(s.logger, "reset password: delete expired reset failed", err)
		}
		return ErrResetExpired
	}

	acc, err := s.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetInvalid
		}
		return internal(err, "lookup account")
	}
	if acc.IsBlocked {
		return ErrAccountBlocked
	}
	if acc.IsOAuthUser {
		return ErrOAuthOnly
	}

	// Claim the reset before doing any work with it. A concurrent redemption
	// of the same token loses here and never reaches UpdatePassword.
	if err := s.resets.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetInvalid
		}
		return internal(err, "consume reset")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal(err, "hash password")
	}
	if err := s.accounts.UpdatePassword(ctx, acc.ID, hash); err != nil {
		return internal(err, "update password")
	}
	if err := s.resets.DeleteByAccount(ctx, acc.ID); err != nil {
		apperr.LogError(s.logger, "reset password: purge resets failed", err)
	}
	s.logger.Info("password reset", "account_id", acc.ID)
	return nil
}

func resetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
