// Package common defines shared constants and sentinel errors used across
// the cutout server and CLI. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Auth errors (malformed, badly signed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Processing errors.
	ErrorUpstream      = errors.New("upstream failure")
	ErrorNotReady      = errors.New("not ready")
	ErrorNotConfigured = errors.New("not configured")
)
