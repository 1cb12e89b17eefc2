package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/middleware"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/service"
)

// HostHandler serves a host's view of its own verification.
type HostHandler struct {
	Verification *service.VerificationService
}

// NewHostHandler wires the handler to the verification service.
func NewHostHandler(v *service.VerificationService) *HostHandler {
	return &HostHandler{Verification: v}
}

type verificationResp struct {
	Status          model.VerificationStatus `json:"status"`
	IsVerified      bool                     `json:"is_verified"`
	RejectionReason *string                  `json:"rejection_reason"`
}

// toVerificationResp reuses the public projection so the reason is only
// present while the host is rejected.
func toVerificationResp(a *model.Account) verificationResp {
	pub := a.Public()
	return verificationResp{Status: pub.VerificationStatus, IsVerified: pub.IsVerified, RejectionReason: pub.RejectionReason}
}

// Status returns the caller's own verification state. Hosts never pass an
// id; the principal decides whose record is read.
func (h *HostHandler) Status(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acc, err := h.Verification.Status(ctx, p.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVerificationResp(acc))
}

// Reapply moves a rejected host back to pending. Any other state is a 409
// from the transition table.
func (h *HostHandler) Reapply(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acc, err := h.Verification.Reapply(ctx, p.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVerificationResp(acc))
}
