package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrUnauthenticated        = errors.New("authentication token required")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrForbidden              = errors.New("access denied")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrTooManyAttempts        = errors.New("too many attempts, try again later")
	ErrSequenceExhausted      = errors.New("daily booking sequence exhausted")
)

// ValidationError lists the request fields that are missing or malformed.
type ValidationError struct {
	Fields  []string
	Message string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrValidation.Error()
	}
	if len(e.Fields) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
