// Package common defines shared constants and sentinel errors used across
// weavekeeper layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrDuplicateRecord = errors.New("duplicate record")

	// Service-level errors (generic/internal flow control).
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// Validation errors (missing or malformed client input).
	ErrValidation      = errors.New("validation error")
	ErrPayloadTooLarge = errors.New("payload too large")

	// Auth errors (invalid, expired or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Upload lifecycle errors.
	ErrInvalidState       = errors.New("invalid upload state")
	ErrContentUnavailable = errors.New("upload content unavailable")
	ErrPricingUnavailable = errors.New("pricing unavailable")

	// ErrUpstream marks failures of the storage network or the database.
	ErrUpstream = errors.New("upstream failure")

	// ErrConfig marks missing secrets or credentials.
	ErrConfig = errors.New("configuration error")
)
