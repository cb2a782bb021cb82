package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	ErrMissingBrandProfile = errors.New("missing brand profile")
	ErrInvalidQuery        = errors.New("invalid search query")
	ErrNoProviders         = errors.New("no search providers configured")
	ErrAllProvidersFailed  = errors.New("all search providers failed")
	ErrConflict            = errors.New("record already exists")
	ErrNotFound            = errors.New("record not found")
	ErrSessionTerminal     = errors.New("session already completed")
	ErrSessionNotPaused    = errors.New("session is not paused")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
