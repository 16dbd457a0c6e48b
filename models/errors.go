package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("login required")
	ErrForbidden    = errors.New("insufficient privilege")
	// ErrGuarded is a business rule rejected by storage itself, such as an admin-only audit row.
	ErrGuarded  = errors.New("rejected by storage guard")
	ErrConflict = errors.New("conflicts with existing data")
	// ErrDecode means a row carried NULL where a value must be present.
	ErrDecode = errors.New("unexpected null in result row")
)

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
