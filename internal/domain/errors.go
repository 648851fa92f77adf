package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrExpired      = errors.New("expired")
	ErrMismatch     = errors.New("code mismatch")
	ErrInvalidFlow  = errors.New("invalid flow")
	ErrInternal     = errors.New("internal error")
	// ErrTooManyAttempts means the challenge was dropped after repeated wrong codes.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Internal marks err as a collaborator failure while keeping the cause in the chain.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
