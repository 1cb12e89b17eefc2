// Package apperr defines the error categories surfaced by the authentication
// core. Every error returned to the transport layer wraps exactly one of the
// kind sentinels below so handlers can map it to a stable status code with
// errors.Is. Concrete errors are built with oops so they carry a machine
// readable code and structured context for logging.
package apperr

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Kind sentinels. They are never returned bare; use New.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrTooManyRequests = errors.New("too many requests")
)

var kinds = []error{ErrValidation, ErrConflict, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrTooManyRequests}

// publicError carries the client-safe message and links it to its kind.
type publicError struct {
	kind error
	msg  string
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.kind }

// New returns a categorized error with a stable code. msg is safe to show to
// API clients.
func New(kind error, code, msg string) error {
	return oops.In("auth").Code(code).Wrap(&publicError{kind: kind, msg: msg})
}

// Newf is New with a formatted message.
func Newf(kind error, code, format string, args ...any) error {
	return New(kind, code, fmt.Sprintf(format, args...))
}

// Validation is shorthand for a field-level validation failure.
func Validation(field, msg string) error {
	return oops.In("auth").Code("VALIDATION_FAILED").With("field", field).Wrap(&publicError{kind: ErrValidation, msg: msg})
}

// Kind returns the category sentinel of err, or nil for uncategorized
// (internal) errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the client-safe message of a categorized error and a
// generic text for anything else.
func Message(err error) string {
	var pe *publicError
	if errors.As(err, &pe) {
		return pe.msg
	}
	return "internal error"
}

// Code returns the oops code attached to err, if any.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			return fmt.Sprint(code)
		}
	}
	return ""
}
