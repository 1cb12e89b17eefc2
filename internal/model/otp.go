package model

import "time"

// OneTimeCode models a row in the `one_time_codes` table. A code proves
// control of Email and is consumed by deleting the row.
type OneTimeCode struct {
	ID        string
	Email     string
	Code      string
	CreatedAt time.Time
}

// Expired reports whether the code is older than ttl at now.
func (c *OneTimeCode) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.CreatedAt) > ttl
}
