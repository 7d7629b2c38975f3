// Package common defines the sentinel error kinds and shared constants used
// across the account service. Callers should use errors.Is to match these
// values; the HTTP layer maps each kind to a status code.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("user not found")
	ErrorAlreadyExists = errors.New("user already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized request")

	// Validation errors (missing or blank required fields).
	ErrValidation = errors.New("validation error")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors.
	ErrMissingToken     = errors.New("refresh token is required")
	ErrInvalidToken     = errors.New("invalid refresh token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")

	// Upstream failures surfaced as 500-class errors.
	ErrTokenIssuance = errors.New("error generating tokens")
	ErrUploadFailed  = errors.New("failed to upload file")
)

// Error attaches a client-facing message to an error kind. errors.Is matches
// the kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// WithMessage returns an error of the given kind carrying msg.
func WithMessage(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}
