package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/homestay-auth/internal/apperr"
	"github.com/iliyamo/homestay-auth/internal/middleware"
	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/service"
)

// AdminHandler serves host review and account administration.
type AdminHandler struct {
	Verification *service.VerificationService
	Admin        *service.AdminService
}

// NewAdminHandler wires the handler to the review and admin services.
func NewAdminHandler(v *service.VerificationService, a *service.AdminService) *AdminHandler {
	return &AdminHandler{Verification: v, Admin: a}
}

type rejectReq struct {
	Reason string `json:"reason"`
}

// pathID reads the :id route parameter. Unknown ids are reported later as
// 404 by the service.
func pathID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return "", apperr.Validation("id", "id is required")
	}
	return id, nil
}

// ListHosts lists hosts, optionally filtered with ?status=pending|approved|rejected.
func (h *AdminHandler) ListHosts(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	hosts, err := h.Admin.ListHosts(ctx, c.QueryParam("status"))
	if err != nil {
		return err
	}
	out := make([]model.PublicAccount, 0, len(hosts))
	for i := range hosts {
		out = append(out, hosts[i].Public())
	}
	return c.JSON(http.StatusOK, echo.Map{"hosts": out, "count": len(out)})
}

// Approve marks a host verified and clears any rejection reason.
func (h *AdminHandler) Approve(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acc, err := h.Verification.Approve(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Public())
}

// Reject records a reason and moves the host to rejected. A blank reason
// is a 400.
func (h *AdminHandler) Reject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	acc, err := h.Verification.Reject(ctx, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Public())
}

// Block bars an account from signing in and ends its live sessions.
func (h *AdminHandler) Block(c echo.Context) error {
	return h.setBlocked(c, true)
}

// Unblock lifts a block.
func (h *AdminHandler) Unblock(c echo.Context) error {
	return h.setBlocked(c, false)
}

func (h *AdminHandler) setBlocked(c echo.Context, blocked bool) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	actor, ok := middleware.PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	// The actor is passed down so the service can refuse self-blocks.
	if blocked {
		err = h.Admin.Block(ctx, actor, id)
	} else {
		err = h.Admin.Unblock(ctx, actor, id)
	}
	if err != nil {
		return err
	}
	// Re-read so the response reflects the stored flag.
	acc, err := h.Admin.Account(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, acc.Public())
}
