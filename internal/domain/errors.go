package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller-fixable problems detected before any storage mutation.
	ErrValidation = errors.New("validation error")
	// ErrInvalidTransactionType marks a type tag missing from the registry.
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

// ValidationError describes which field of a transaction failed validation.
type ValidationError struct {
	Field   string
	Message string
	// Cause is an optional more specific sentinel, e.g. ErrInvalidTransactionType.
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Message, e.Field)
}

// Is lets errors.Is match both ErrValidation and the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.Cause != nil && errors.Is(e.Cause, target))
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
