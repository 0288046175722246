package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and stores. Wrap them with %w.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid returns a ValidationError for field.
func Invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// NotFound wraps ErrNotFound with the entity and key that were looked up.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
}

// Conflict wraps ErrConflict with msg.
func Conflict(msg string) error { return fmt.Errorf("%s: %w", msg, ErrConflict) }
