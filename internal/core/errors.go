package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by validation wraps exactly one of them.
var (
	ErrInvalidRange  = errors.New("invalid range")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidInput  = errors.New("invalid input")

	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v [%s]: %s", e.Kind, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Invalid builds a ValidationError of the given kind.
func Invalid(kind error, field, message string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Message: message}
}

// IsValidation reports whether err is one of the caller-facing validation kinds.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput)
}
