package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dom/foodieswipe/internal/api/middleware"
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/websocket"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub           *websocket.Hub
	authenticator *websocket.Authenticator
	upgrader      ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, authenticator *websocket.Authenticator, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		authenticator: authenticator,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handle authenticates before upgrading, so a rejected client never gets a
// socket.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	l := middleware.LoggerFrom(r.Context())

	identity, err := h.authenticator.Authenticate(r.Context(), websocket.CredentialFromRequest(r))
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			l.Error().Err(err).Msg("websocket authentication unavailable")
			writeError(w, http.StatusServiceUnavailable, websocket.CodeUpstreamUnavailable, websocket.ErrorMessage(websocket.CodeUpstreamUnavailable))
			return
		}
		l.Warn().Err(err).Msg("websocket authentication failed")
		writeError(w, http.StatusUnauthorized, websocket.CodeAuthRequired, websocket.ErrorMessage(websocket.CodeAuthRequired))
		return
	}

	if decision := h.hub.AllowHandshake(identity.UserID); !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, websocket.CodeRateLimited, websocket.ErrorMessage(websocket.CodeRateLimited))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, identity)
	if err := h.hub.Register(client); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
