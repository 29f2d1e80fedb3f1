package handlers

import (
	"net/http"
	"time"

	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
)

type CoupleHandler struct {
	coupleService  *service.CoupleService
	sessionService *service.SessionService
	hub            *websocket.Hub
}

func NewCoupleHandler(coupleService *service.CoupleService, sessionService *service.SessionService, hub *websocket.Hub) *CoupleHandler {
	return &CoupleHandler{
		coupleService:  coupleService,
		sessionService: sessionService,
		hub:            hub,
	}
}

type SendInviteRequest struct {
	PartnerCode string `json:"partnerCode"`
}

type CoupleResponse struct {
	ID        string               `json:"id"`
	User1ID   string               `json:"user1Id"`
	User2ID   string               `json:"user2Id"`
	PartnerID string               `json:"partnerId"`
	IsActive  bool                 `json:"isActive"`
	CreatedAt time.Time            `json:"createdAt"`
	Stats     *service.CoupleStats `json:"stats,omitempty"`
}

func (h *CoupleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	couple, err := h.coupleService.GetCouple(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := CoupleResponse{
		ID:        couple.ID.String(),
		User1ID:   couple.User1ID.String(),
		User2ID:   couple.User2ID.String(),
		PartnerID: couple.PartnerOf(userID).String(),
		IsActive:  couple.IsActive,
		CreatedAt: couple.CreatedAt,
	}

	stats, err := h.coupleService.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp.Stats = stats

	writeJSON(w, http.StatusOK, resp)
}

func (h *CoupleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.coupleService.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Breakup dissolves the couple, tells any live connection that its open
// session is over, then closes both partners' sockets so they reconnect
// without the old couple state.
func (h *CoupleHandler) Breakup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	open, _ := h.sessionService.CurrentSession(r.Context(), userID)

	couple, err := h.coupleService.Breakup(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if open != nil {
		h.hub.NotifySessionEnded(open, userID, "couple_dissolved")
	}
	h.hub.DisconnectUser(couple.User1ID)
	h.hub.DisconnectUser(couple.User2ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"coupleId": couple.ID.String(),
	})
}

func (h *CoupleHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SendInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	invite, err := h.coupleService.SendInvite(r.Context(), userID, req.PartnerCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (h *CoupleHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	invites, err := h.coupleService.PendingInvites(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *CoupleHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	inviteID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	couple, err := h.coupleService.AcceptInvite(r.Context(), inviteID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, couple)
}

func (h *CoupleHandler) RejectInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	inviteID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.coupleService.RejectInvite(r.Context(), inviteID, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
