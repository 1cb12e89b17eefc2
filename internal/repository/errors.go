// Package repository contains the MySQL-backed stores for accounts, one-time
// codes and password resets. The sentinel errors below are shared with the
// in-memory implementation so the service layer can map them without caring
// which backend is wired.
package repository

import "errors"

// ErrNotFound is returned when a lookup, update or delete matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrStateConflict is returned by conditional updates when the row exists but
// is not in one of the expected states.
var ErrStateConflict = errors.New("state conflict")
