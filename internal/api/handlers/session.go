package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
)

type SessionHandler struct {
	sessionService *service.SessionService
	swipeEngine    *service.SwipeEngine
	hub            *websocket.Hub
}

func NewSessionHandler(sessionService *service.SessionService, swipeEngine *service.SwipeEngine, hub *websocket.Hub) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		swipeEngine:    swipeEngine,
		hub:            hub,
	}
}

type SessionResponse struct {
	Session  *domain.Session `json:"session"`
	RoomCode string          `json:"roomCode,omitempty"`
}

type SwipeRequest struct {
	DishID       string          `json:"dishId"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	Action       string          `json:"action"`
	DishData     json.RawMessage `json:"dishData,omitempty"`
}

type SwipeResponse struct {
	IsMatch           bool             `json:"isMatch"`
	WaitingForPartner bool             `json:"waitingForPartner"`
	AlreadyDecided    bool             `json:"alreadyDecided"`
	Decision          *domain.Decision `json:"decision,omitempty"`
}

// Start returns the couple's open session, creating one if needed, and binds
// it to a room code for realtime clients.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, created, err := h.sessionService.StartSession(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code, err := h.hub.SyncExternalSession(session)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SessionResponse{Session: session, RoomCode: code})
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.CurrentSession(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code, _ := h.hub.Registry().RoomCode(session.ID)
	writeJSON(w, http.StatusOK, SessionResponse{Session: session, RoomCode: code})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	code, _ := h.hub.Registry().RoomCode(session.ID)
	writeJSON(w, http.StatusOK, SessionResponse{Session: session, RoomCode: code})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessionService.EndSession(r.Context(), sessionID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.hub.NotifySessionEnded(session, userID, "ended_by_user")
	writeJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// Swipe records a swipe outside the socket and fans it out like a realtime
// one.
func (h *SessionHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SwipeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.swipeEngine.RecordSwipe(r.Context(), sessionID, userID, service.SwipeInput{
		DishID:       req.DishID,
		RestaurantID: req.RestaurantID,
		Action:       domain.SwipeAction(req.Action),
		DishData:     req.DishData,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.hub.BroadcastSwipe(sessionID, userID, result)

	writeJSON(w, http.StatusOK, SwipeResponse{
		IsMatch:           result.IsMatch,
		WaitingForPartner: result.WaitingForPartner,
		AlreadyDecided:    result.AlreadyDecided,
		Decision:          result.Decision,
	})
}

func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	decisions, err := h.sessionService.History(r.Context(), userID, intQuery(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
