package websocket

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/metrics"
	"github.com/dom/foodieswipe/internal/ratelimit"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrHubStopped = errors.New("hub stopped")

// SwipeRecorder is the part of the swipe engine the gateway drives.
type SwipeRecorder interface {
	RecordSwipe(ctx context.Context, sessionID, userID uuid.UUID, in service.SwipeInput) (*service.SwipeResult, error)
}

type HubConfig struct {
	RoomMaxAge      time.Duration
	CleanupInterval time.Duration
}

type HubStats struct {
	Registry  RegistryStats   `json:"registry"`
	RateLimit ratelimit.Stats `json:"rateLimit"`
}

type Presence struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	CoupleID string `json:"coupleId,omitempty"`
}

type registration struct {
	client *Client
	done   chan struct{}
}

// Hub owns the live connections and runs every inbound event through rate
// limiting, decoding, permission checks and its handler.
type Hub struct {
	clients    map[*Client]bool
	register   chan *registration
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopOnce   sync.Once
	mu         sync.RWMutex

	registry  *Registry
	limiter   *ratelimit.Limiter
	validator *PermissionValidator
	swipes    SwipeRecorder
	emitter   *EventEmitter
	commands  *CommandHandler
	cfg       HubConfig
	log       zerolog.Logger
}

func NewHub(cfg HubConfig, registry *Registry, limiter *ratelimit.Limiter, validator *PermissionValidator, swipes SwipeRecorder, log zerolog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *registration),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		registry:   registry,
		limiter:    limiter,
		validator:  validator,
		swipes:     swipes,
		cfg:        cfg,
		log:        log,
	}
	h.emitter = NewEventEmitter(registry)
	h.commands = NewCommandHandler(h)
	return h
}

func (h *Hub) Run() {
	defer close(h.done) // Signal that Run() has exited

	var cleanup <-chan time.Time
	if h.cfg.CleanupInterval > 0 && h.cfg.RoomMaxAge > 0 {
		ticker := time.NewTicker(h.cfg.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				h.registry.OnDisconnect(client)
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			metrics.WSConnections.Set(0)
			return

		case req := <-h.register:
			h.mu.Lock()
			h.clients[req.client] = true
			h.mu.Unlock()
			h.registry.OnConnect(req.client)
			metrics.WSConnections.Inc()
			h.emitter.Authenticated(req.client)
			close(req.done)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			h.mu.Unlock()
			if ok {
				left := h.registry.OnDisconnect(client)
				client.Close()
				metrics.WSConnections.Dec()
				h.log.Debug().
					Str("conn_id", client.ID()).
					Str("user_id", client.UserID().String()).
					Int("sessions_left", len(left)).
					Msg("client disconnected")
			}

		case <-cleanup:
			h.registry.CleanupStale(h.cfg.RoomMaxAge)
		}
	}
}

// Stop shuts the hub down and blocks until Run has exited.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// Register adds the client and queues its authenticated acknowledgement. It
// returns once the hub has processed the registration.
func (h *Hub) Register(client *Client) error {
	req := &registration{client: client, done: make(chan struct{})}
	select {
	case h.register <- req:
	case <-h.done:
		return ErrHubStopped
	}
	<-req.done
	return nil
}

// Unregister is safe to call after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// AllowHandshake charges a connection attempt against the user's
// authenticate budget.
func (h *Hub) AllowHandshake(userID uuid.UUID) ratelimit.Decision {
	decision := h.limiter.CheckAndConsume(userID.String(), "authenticate")
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues("authenticate").Inc()
	}
	return decision
}

// HandleEvent runs one inbound message through the pipeline. Failures are
// reported to the sender as error messages; nothing here tears down the
// connection.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, msg *Message) {
	eventType := string(msg.Type)
	// Unknown types collapse into the default bucket so client input cannot
	// grow counters or metric labels.
	label := h.limiter.Bucket(eventType)

	decision := h.limiter.CheckAndConsume(c.UserID().String(), eventType)
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues(label).Inc()
		metrics.WSEventsTotal.WithLabelValues(label, "rate_limited").Inc()
		remaining := 0
		c.sendError(ErrorPayload{
			Code:       CodeRateLimited,
			Message:    ErrorMessage(CodeRateLimited),
			EventType:  eventType,
			RetryAfter: int(math.Ceil(decision.RetryAfter.Seconds())),
			Remaining:  &remaining,
		})
		return
	}

	event, err := DecodeEvent(msg, h.registry)
	if err != nil {
		h.fail(c, eventType, label, err)
		return
	}

	if err := h.validator.Validate(ctx, c.Identity(), event.Scope()); err != nil {
		h.fail(c, eventType, label, err)
		return
	}

	if err := h.commands.Handle(ctx, c, event); err != nil {
		h.fail(c, eventType, label, err)
		return
	}
	metrics.WSEventsTotal.WithLabelValues(label, "ok").Inc()
}

func (h *Hub) fail(c *Client, eventType, label string, err error) {
	code := ErrorCode(err)
	metrics.WSEventsTotal.WithLabelValues(label, "error").Inc()

	l := h.log.Warn()
	if code == CodeUnknownError || code == CodeUpstreamUnavailable {
		l = h.log.Error()
	}
	l.Err(err).
		Str("conn_id", c.ID()).
		Str("user_id", c.UserID().String()).
		Str("event", eventType).
		Str("code", code).
		Msg("event rejected")

	c.sendError(ErrorPayload{
		Code:      code,
		Message:   errorMessageFor(code, err),
		EventType: eventType,
	})
}

// SyncExternalSession binds a room code to a session created over HTTP.
func (h *Hub) SyncExternalSession(session *domain.Session) (string, error) {
	return h.registry.SyncExternalSession(session.ID, session.CoupleID, []uuid.UUID{session.User1ID, session.User2ID})
}

// BroadcastSwipe fans out a swipe recorded outside a socket, so HTTP swipes
// reach a partner who is connected.
func (h *Hub) BroadcastSwipe(sessionID, userID uuid.UUID, result *service.SwipeResult) {
	h.emitter.SwipeOutcome(sessionID, userID, result)
	if result.IsMatch {
		h.registry.MarkSessionInactive(sessionID)
	}
}

// NotifySessionEnded tells both participants the session closed.
func (h *Hub) NotifySessionEnded(session *domain.Session, endedBy uuid.UUID, reason string) {
	h.emitter.SessionEnded(session, endedBy, reason)
	h.registry.MarkSessionInactive(session.ID)
}

// DisconnectUser closes every live connection of the user and forgets its
// couple binding and rate limit counters. Messages already queued are flushed
// before the close frame. It returns how many connections were closed.
func (h *Hub) DisconnectUser(userID uuid.UUID) int {
	h.limiter.ResetUser(userID.String())
	h.registry.UnbindCouple(userID)
	if !h.registry.IsOnline(userID) {
		return 0
	}

	h.mu.RLock()
	var targets []*Client
	for client := range h.clients {
		if client.UserID() == userID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.Close()
	}
	h.log.Info().
		Str("user_id", userID.String()).
		Int("connections", len(targets)).
		Msg("user disconnected")
	return len(targets)
}

// Presence reports whether the user has a live connection and which couple
// the realtime layer has bound them to.
func (h *Hub) Presence(userID uuid.UUID) Presence {
	p := Presence{UserID: userID.String(), Online: h.registry.IsOnline(userID)}
	if coupleID, ok := h.registry.CoupleOf(userID); ok {
		p.CoupleID = coupleID.String()
	}
	return p
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Registry:  h.registry.Stats(),
		RateLimit: h.limiter.Stats(),
	}
}

func (h *Hub) RateLimitStatus(userID uuid.UUID, eventType string) ratelimit.Status {
	return h.limiter.Status(userID.String(), eventType)
}
