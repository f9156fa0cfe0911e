package service

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports an invalid zone configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
