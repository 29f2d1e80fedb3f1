package websocket

import (
	"errors"

	"github.com/dom/foodieswipe/internal/domain"
)

// Error codes sent to clients in error payloads.
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotPartners         = "NOT_PARTNERS"
	CodeRateLimited         = "RATE_LIMITED"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionNotActive    = "SESSION_NOT_ACTIVE"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUnknownEvent        = "UNKNOWN_EVENT"
	CodeUnknownError        = "UNKNOWN_ERROR"
)

// ErrorCode maps an error to the code clients see. Anything unrecognised is
// UNKNOWN_ERROR so internals never leak.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrExpiredCredential),
		errors.Is(err, domain.ErrUserNotFound):
		return CodeAuthRequired
	case errors.Is(err, domain.ErrNotPartners):
		return CodeNotPartners
	case errors.Is(err, domain.ErrAuthorization):
		return CodeUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, domain.ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, domain.ErrSessionNotActive):
		return CodeSessionNotActive
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	case errors.Is(err, domain.ErrValidation):
		return CodeInvalidPayload
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return CodeUpstreamUnavailable
	}
	return CodeUnknownError
}

// ErrorMessage is the human readable text paired with a code.
func ErrorMessage(code string) string {
	switch code {
	case CodeAuthRequired:
		return "Authentication required"
	case CodeUnauthorized:
		return "You are not a participant of this session"
	case CodeNotPartners:
		return "You can only interact with your partner"
	case CodeRateLimited:
		return "Too many requests, slow down"
	case CodeSessionNotFound:
		return "Session not found"
	case CodeSessionNotActive:
		return "Session is no longer active"
	case CodeInvalidPayload:
		return "Invalid payload"
	case CodeUpstreamUnavailable:
		return "Service temporarily unavailable"
	case CodeUnknownEvent:
		return "Unknown event type"
	}
	return "Something went wrong"
}

// errorMessageFor keeps validation detail, which is written for clients, and
// hides everything else behind the generic text.
func errorMessageFor(code string, err error) string {
	if code == CodeInvalidPayload && err != nil {
		return err.Error()
	}
	return ErrorMessage(code)
}
