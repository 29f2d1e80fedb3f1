package domain

import (
	"errors"
	"fmt"
)

// Authentication and authorization errors
var (
	ErrNotAuthenticated  = errors.New("authentication required")
	ErrAuthorization     = errors.New("not authorized")
	ErrUnauthorized      = fmt.Errorf("%w: not a participant of this session", ErrAuthorization)
	ErrNotPartners       = fmt.Errorf("%w: users are not partners", ErrAuthorization)
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("credential expired")
	ErrUserNotFound      = errors.New("user not found")
)

// Session errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is no longer active")
	ErrInvalidSession   = errors.New("session must have exactly two participants")
)

// Event pipeline errors
var (
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrValidation          = errors.New("invalid payload")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Couple errors
var (
	ErrAlreadyPaired    = errors.New("user already has a partner")
	ErrNotPaired        = errors.New("user has no partner")
	ErrCoupleNotFound   = errors.New("couple not found")
	ErrInviteNotFound   = errors.New("invite not found")
	ErrInviteExpired    = errors.New("invite has expired")
	ErrInviteNotPending = errors.New("invite is not pending")
	ErrSelfInvite       = errors.New("cannot invite yourself")
)

// Validationf wraps ErrValidation with a field-level message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps an infrastructure failure so callers can match it with
// errors.Is(err, ErrUpstreamUnavailable).
func Upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
}
