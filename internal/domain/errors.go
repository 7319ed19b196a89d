package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidScope         = errors.New("invalid scope")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrUnavailable          = errors.New("service unavailable")
)

// MissingField wraps ErrMissingRequiredField with the name of the field the
// caller omitted, so handlers can surface it verbatim.
func MissingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, field)
}

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
