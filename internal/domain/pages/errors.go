package pages

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrNotFound is returned when no page exists for a slug.
	ErrNotFound = eris.New("page not found")
	// ErrAlreadyExists is returned when a create collides with a live slug.
	ErrAlreadyExists = eris.New("page already exists")
	// ErrForbidden is returned when neither the edit token nor the identity authorizes a mutation.
	ErrForbidden = eris.New("forbidden")
	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = eris.New("invalid input")
	// ErrStoreUnavailable marks a backend failure or timeout.
	ErrStoreUnavailable = eris.New("page store unavailable")
)

// Rejection reasons reported for slug and field validation.
const (
	ReasonTooShort     = "too_short"
	ReasonTooLong      = "too_long"
	ReasonInvalidChars = "invalid_chars"
	ReasonTaken        = "taken"
	ReasonReserved     = "reserved"
	ReasonRequired     = "required"
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets eris.Is and errors.Is match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
