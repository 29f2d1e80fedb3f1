package handlers

import (
	"net/http"

	"github.com/dom/foodieswipe/internal/websocket"
	"github.com/go-chi/chi/v5"
)

type RealtimeHandler struct {
	hub *websocket.Hub
}

func NewRealtimeHandler(hub *websocket.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

func (h *RealtimeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Stats())
}

// Presence reports the caller's own realtime presence.
func (h *RealtimeHandler) Presence(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.hub.Presence(userID))
}

// RateLimitStatus reports the caller's budget for one event type without
// consuming it.
func (h *RealtimeHandler) RateLimitStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	event := chi.URLParam(r, "event")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event":  event,
		"status": h.hub.RateLimitStatus(userID, event),
	})
}
