package model

import "time"

// PasswordReset models a row in the `password_resets` table. Only the SHA-256
// hash of the emailed token is stored.
type PasswordReset struct {
	ID        string
	AccountID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the reset artifact is no longer usable at now.
func (r *PasswordReset) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
