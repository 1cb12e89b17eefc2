package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
)

// AdminService holds account administration that is not part of the host
// verification workflow.
type AdminService struct {
	accounts AccountStore
	logger   *slog.Logger
}

// NewAdminService builds an AdminService.
func NewAdminService(accounts AccountStore, logger *slog.Logger) (*AdminService, error) {
	if accounts == nil || logger == nil {
		return nil, oops.In("admin").Code("MISSING_DEPENDENCY").Errorf("account store and logger are required")
	}
	return &AdminService{accounts: accounts, logger: logger}, nil
}

// Block disables an account for every authentication flow. Verification
// status is left untouched. The refresh token is cleared so the block takes
// effect without waiting for a refresh attempt.
func (s *AdminService) Block(ctx context.Context, actor model.Principal, accountID string) error {
	if actor.AccountID == accountID {
		return apperr.New(apperr.ErrValidation, "SELF_BLOCK", "admins cannot block themselves")
	}
	if err := s.setBlocked(ctx, accountID, true); err != nil {
		return err
	}
	if err := s.accounts.SetRefreshTokenHash(ctx, accountID, ""); err != nil {
		apperr.LogError(s.logger, "block: clear refresh token failed", err)
	}
	s.logger.Info("account blocked", "account_id", accountID, "by", actor.AccountID)
	return nil
}

// Unblock re-enables an account.
func (s *AdminService) Unblock(ctx context.Context, actor model.Principal, accountID string) error {
	if err := s.setBlocked(ctx, accountID, false); err != nil {
		return err
	}
	s.logger.Info("account unblocked", "account_id", accountID, "by", actor.AccountID)
	return nil
}

// ListHosts lists hosts, optionally filtered by a status name.
func (s *AdminService) ListHosts(ctx context.Context, status string) ([]model.Account, error) {
	var st model.VerificationStatus
	if status != "" {
		var ok bool
		if st, ok = model.ParseVerificationStatus(status); !ok {
			return nil, apperr.Validation("status", "status must be pending, approved or rejected")
		}
	}
	hosts, err := s.accounts.ListHosts(ctx, st)
	if err != nil {
		return nil, internal(err, "list hosts")
	}
	return hosts, nil
}

// Account returns any account by id.
func (s *AdminService) Account(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internal(err, "lookup account")
	}
	return acc, nil
}

func (s *AdminService) setBlocked(ctx context.Context, id string, blocked bool) error {
	if err := s.accounts.SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return internal(err, "set blocked")
	}
	return nil
}
