// Package domain holds shared domain types and error taxonomy used across modules.
// Keeping these here avoids import cycles between feature modules.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger and reporting operations.
// Handlers map these to HTTP status codes; services wrap them with detail.
var (
	// ErrValidation indicates malformed or missing input (quantity/price <= 0,
	// empty portfolio name, bad email, ...).
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates an unknown holding id, portfolio name or user.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable indicates a price provider timeout or error.
	// Ledger operations recover from it locally (fallback to purchase price),
	// so it never surfaces from a mutation - only from raw quote lookups.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUnauthorized indicates a missing, expired or malformed bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Validationf wraps ErrValidation with detail about the failing field.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with detail about the missing entity.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
