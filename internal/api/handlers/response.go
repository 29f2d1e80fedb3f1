package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dom/foodieswipe/internal/api/middleware"
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeServiceError maps a service error onto a status and error code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	l := middleware.LoggerFrom(r.Context())
	if status >= 500 {
		l.Error().Err(err).Str("code", code).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("code", code).Msg("request rejected")
	}
	writeError(w, status, code, message)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"
	case errors.Is(err, service.ErrEmailExists):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered"
	case errors.Is(err, domain.ErrAlreadyPaired):
		return http.StatusConflict, "ALREADY_PAIRED", "User already has a partner"
	case errors.Is(err, domain.ErrNotPaired):
		return http.StatusNotFound, "NOT_PAIRED", "You do not have a partner yet"
	case errors.Is(err, domain.ErrCoupleNotFound):
		return http.StatusNotFound, "COUPLE_NOT_FOUND", "Couple not found"
	case errors.Is(err, domain.ErrInviteNotFound):
		return http.StatusNotFound, "INVITE_NOT_FOUND", "Invite not found"
	case errors.Is(err, domain.ErrInviteExpired):
		return http.StatusGone, "INVITE_EXPIRED", "Invite has expired"
	case errors.Is(err, domain.ErrInviteNotPending):
		return http.StatusConflict, "INVITE_NOT_PENDING", "Invite was already answered"
	case errors.Is(err, domain.ErrSelfInvite):
		return http.StatusBadRequest, "SELF_INVITE", "You cannot invite yourself"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "User not found"
	}

	code := websocket.ErrorCode(err)
	message := websocket.ErrorMessage(code)
	switch code {
	case websocket.CodeAuthRequired:
		return http.StatusUnauthorized, code, message
	case websocket.CodeUnauthorized, websocket.CodeNotPartners:
		return http.StatusForbidden, code, message
	case websocket.CodeSessionNotFound:
		return http.StatusNotFound, code, message
	case websocket.CodeSessionNotActive:
		return http.StatusConflict, code, message
	case websocket.CodeInvalidPayload:
		return http.StatusBadRequest, code, err.Error()
	case websocket.CodeRateLimited:
		return http.StatusTooManyRequests, code, message
	case websocket.CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable, code, message
	}
	return http.StatusInternalServerError, websocket.CodeUnknownError, message
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, websocket.CodeInvalidPayload, "Invalid request body")
		return false
	}
	return true
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, websocket.CodeAuthRequired, "Unauthorized")
	}
	return userID, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, websocket.CodeInvalidPayload, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
