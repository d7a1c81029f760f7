package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidRole            = errors.New("invalid role")
	ErrMissingPrincipal       = errors.New("grant check called without a principal id")
)
