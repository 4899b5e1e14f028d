// Package apperr defines the error taxonomy shared by the calculator,
// the settlement tracker and the services.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrReconciliation = errors.New("reconciliation error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrPersistence    = errors.New("persistence error")
	ErrStorage        = errors.New("storage error")
)

// Error is a domain error with a caller-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && (e.Kind == ErrPersistence || e.Kind == ErrStorage) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind. A reconciliation error is also a validation error.
func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrReconciliation && target == ErrValidation
}

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// Reconciliation returns an error for splitting totals that do not balance.
func Reconciliation(format string, args ...any) error {
	return &Error{Kind: ErrReconciliation, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an error for an absent entity, e.g. NotFound("Event").
func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

// Conflict returns an error for a request that clashes with current state.
func Conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a backing-store failure.
func Persistence(op string, err error) error {
	return &Error{Kind: ErrPersistence, Message: op, Err: err}
}

// Storage wraps an object-store failure.
func Storage(op string, err error) error {
	return &Error{Kind: ErrStorage, Message: op, Err: err}
}

// Message returns the caller-facing message of err. Persistence and storage
// failures, and errors outside the taxonomy, collapse to a generic message.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != ErrPersistence && appErr.Kind != ErrStorage {
		return appErr.Message
	}
	return "internal server error"
}

// IsDomain reports whether err belongs to the caller-facing part of the taxonomy.
func IsDomain(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
