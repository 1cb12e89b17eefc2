package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/metrics"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
)

// Host verification transitions. Approved never returns to pending
// directly; trust is only lowered through an explicit Reject.
var (
	approveTransition = model.VerificationTransition{
		From:       []model.VerificationStatus{model.VerificationPending, model.VerificationRejected, model.VerificationApproved},
		To:         model.VerificationApproved,
		IsVerified: true,
	}
	reapplyTransition = model.VerificationTransition{
		From: []model.VerificationStatus{model.VerificationRejected},
		To:   model.VerificationPending,
	}
)

func rejectTransition(reason string) model.VerificationTransition {
	return model.VerificationTransition{
		From:   []model.VerificationStatus{model.VerificationPending, model.VerificationApproved, model.VerificationRejected},
		To:     model.VerificationRejected,
		Reason: reason,
	}
}

// VerificationService runs the host approval workflow.
type VerificationService struct {
	accounts AccountStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewVerificationService builds a VerificationService.
func NewVerificationService(accounts AccountStore, logger *slog.Logger, m *metrics.Metrics) (*VerificationService, error) {
	if accounts == nil {
		return nil, oops.In("verification").Code("MISSING_DEPENDENCY").Errorf("account store is required")
	}
	if logger == nil {
		return nil, oops.In("verification").Code("MISSING_DEPENDENCY").Errorf("logger is required")
	}
	return &VerificationService{accounts: accounts, logger: logger, metrics: m}, nil
}

// Approve marks a host verified and clears any rejection reason.
func (s *VerificationService) Approve(ctx context.Context, hostID string) (*model.Account, error) {
	acc, err := s.transition(ctx, hostID, approveTransition)
	s.metrics.Operation("host_approve", outcome(err))
	return acc, err
}

// Reject marks a host rejected with a mandatory reason.
func (s *VerificationService) Reject(ctx context.Context, hostID, reason string) (acc *model.Account, err error) {
	// Every exit, including input rejections, counts toward host_reject.
	defer func() { s.metrics.Operation("host_reject", outcome(err)) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, apperr.Validation("reason", "rejection reason is too long")
	}
	return s.transition(ctx, hostID, rejectTransition(reason))
}

// Reapply moves a rejected host back to pending review.
func (s *VerificationService) Reapply(ctx context.Context, hostID string) (*model.Account, error) {
	acc, err := s.transition(ctx, hostID, reapplyTransition)
	s.metrics.Operation("host_reapply", outcome(err))
	return acc, err
}

// Status returns the host's own view of its verification state.
func (s *VerificationService) Status(ctx context.Context, hostID string) (*model.Account, error) {
	acc, err := s.accounts.GetByID(ctx, hostID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHostNotFound
		}
		return nil, internal(err, "lookup host")
	}
	if acc.Role != model.RoleHost {
		return nil, ErrHostNotFound
	}
	return acc, nil
}

func (s *VerificationService) transition(ctx context.Context, hostID string, t model.VerificationTransition) (*model.Account, error) {
	acc, err := s.accounts.TransitionVerification(ctx, hostID, t)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrHostNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return nil, ErrInvalidTransition
	case err != nil:
		return nil, internal(err, "transition verification")
	}
	s.logger.Info("host verification changed", "host_id", hostID, "status", acc.VerificationStatus)
	return acc, nil
}
