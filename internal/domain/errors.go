package domain

import "errors"

// Sentinel errors for the request-level taxonomy. Repositories and services
// wrap these with context; the HTTP layer maps them to status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)
