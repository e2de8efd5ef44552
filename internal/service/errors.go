package service

import (
	"errors"
	"fmt"

	"github.com/craquetonbudget/bonsplans/internal/repository"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthenticated is returned when an action requires a signed-in user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrRemote wraps every storage or network failure.
	ErrRemote = errors.New("remote failure")
)

// ValidationError rejects user input before any storage call is made.
// Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// remote classifies err for the operation op. Errors already in the
// taxonomy keep their class, a missing repository row becomes ErrNotFound,
// anything else is a remote failure.
func remote(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound), errors.Is(err, ErrRemote):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemote, err)
}
