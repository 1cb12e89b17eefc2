package model

import (
	"strings"
	"time"
)

// Role is the coarse authorization role of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleHost, RoleAdmin:
		return r, true
	}
	return "", false
}

// VerificationStatus is the host trust state. Non-host accounts leave it empty.
type VerificationStatus string

const (
	VerificationNone     VerificationStatus = ""
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// ParseVerificationStatus accepts the three host states.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	v := VerificationStatus(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return v, true
	}
	return VerificationNone, false
}

// Account mirrors the `accounts` table.
//
// PasswordHash and RefreshTokenHash are credentials: they are populated only by
// the credential-inclusive store reads and must never leave the service layer.
type Account struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	IsOAuthUser        bool
	Avatar             string
	RefreshTokenHash   string
	IsBlocked          bool
	IsVerified         bool
	VerificationStatus VerificationStatus
	RejectionReason    string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasLocalPassword reports whether the account can sign in with a password.
func (a *Account) HasLocalPassword() bool {
	return !a.IsOAuthUser && a.PasswordHash != ""
}

// WithoutCredentials returns a copy with credential fields cleared.
func (a Account) WithoutCredentials() Account {
	a.PasswordHash = ""
	a.RefreshTokenHash = ""
	return a
}

// PublicAccount is the credential-free view returned to API clients.
type PublicAccount struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Role               Role               `json:"role"`
	IsOAuthUser        bool               `json:"is_oauth_user"`
	Avatar             string             `json:"avatar,omitempty"`
	IsBlocked          bool               `json:"is_blocked"`
	IsVerified         bool               `json:"is_verified"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
	RejectionReason    *string            `json:"rejection_reason"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Public converts an account to its client-facing view.
func (a *Account) Public() PublicAccount {
	var reason *string
	if a.RejectionReason != "" {
		r := a.RejectionReason
		reason = &r
	}
	return PublicAccount{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		Role:               a.Role,
		IsOAuthUser:        a.IsOAuthUser,
		Avatar:             a.Avatar,
		IsBlocked:          a.IsBlocked,
		IsVerified:         a.IsVerified,
		VerificationStatus: a.VerificationStatus,
		RejectionReason:    reason,
		CreatedAt:          a.CreatedAt,
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerificationTransition describes a conditional host status change. It is
// applied only when the host's current status is one of From.
type VerificationTransition struct {
	From       []VerificationStatus
	To         VerificationStatus
	IsVerified bool
	Reason     string
}

// Allows reports whether the transition may start from s.
func (t VerificationTransition) Allows(s VerificationStatus) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}
