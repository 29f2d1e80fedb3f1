package websocket

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeAttempts = 10
)

var ErrRoomCodeExhausted = errors.New("could not allocate a unique room code")

// Conn is a live connection as seen by the registry.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	Send(msg *Message) bool
}

// RoomBinding links a room code to a session created outside this process.
type RoomBinding struct {
	Code            string
	OriginSessionID uuid.UUID
	CoupleID        uuid.UUID
	Participants    []uuid.UUID
	SocketIDsByUser map[uuid.UUID]string
	CreatedAt       time.Time
	LastActivity    time.Time
	IsActive        bool
}

type RegistryStats struct {
	Connections    int `json:"connections"`
	OnlineUsers    int `json:"onlineUsers"`
	ActiveSessions int `json:"activeSessions"`
	RoomBindings   int `json:"roomBindings"`
}

type liveSession struct {
	// user -> connection ids joined to this session
	members map[uuid.UUID]map[string]struct{}
}

// Registry tracks which connections are live and which sessions they joined.
type Registry struct {
	mu            sync.RWMutex
	conns         map[string]Conn
	users         map[uuid.UUID]map[string]Conn
	sessions      map[uuid.UUID]*liveSession
	rooms         map[string]*RoomBinding
	roomBySession map[uuid.UUID]string
	couples       map[uuid.UUID]uuid.UUID

	now func() time.Time
	log zerolog.Logger
}

type RegistryOption func(*Registry)

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRegistryLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:         make(map[string]Conn),
		users:         make(map[uuid.UUID]map[string]Conn),
		sessions:      make(map[uuid.UUID]*liveSession),
		rooms:         make(map[string]*RoomBinding),
		roomBySession: make(map[uuid.UUID]string),
		couples:       make(map[uuid.UUID]uuid.UUID),
		now:           time.Now,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnConnect records a live connection. Registering the same id twice is a
// no-op.
func (r *Registry) OnConnect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addConnLocked(c)
}

func (r *Registry) addConnLocked(c Conn) {
	if _, ok := r.conns[c.ID()]; ok {
		return
	}
	r.conns[c.ID()] = c
	set, ok := r.users[c.UserID()]
	if !ok {
		set = make(map[string]Conn)
		r.users[c.UserID()] = set
	}
	set[c.ID()] = c
}

// OnDisconnect forgets the connection and removes it from every session it
// joined. It returns the sessions in which the user no longer has any live
// connection.
func (r *Registry) OnDisconnect(c Conn) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID, userID := c.ID(), c.UserID()
	if _, ok := r.conns[connID]; !ok {
		return nil
	}
	delete(r.conns, connID)
	if set, ok := r.users[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}

	var left []uuid.UUID
	for sessionID, live := range r.sessions {
		ids, ok := live.members[userID]
		if !ok {
			continue
		}
		if _, joined := ids[connID]; !joined {
			continue
		}
		delete(ids, connID)
		if len(ids) == 0 {
			delete(live.members, userID)
			left = append(left, sessionID)
		}
		if len(live.members) == 0 {
			delete(r.sessions, sessionID)
		}
	}

	for _, binding := range r.rooms {
		if binding.SocketIDsByUser[userID] == connID {
			delete(binding.SocketIDsByUser, userID)
		}
	}
	return left
}

// JoinSession adds the connection to the session's live membership, binds the
// user to coupleID and returns the room code bound to the session, if any.
func (r *Registry) JoinSession(c Conn, sessionID, coupleID uuid.UUID) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.addConnLocked(c)

	code := r.roomBySession[sessionID]
	if binding, ok := r.rooms[code]; ok {
		binding.SocketIDsByUser[c.UserID()] = c.ID()
		binding.LastActivity = r.now()
	}

	live, ok := r.sessions[sessionID]
	if !ok {
		live = &liveSession{members: make(map[uuid.UUID]map[string]struct{})}
		r.sessions[sessionID] = live
	}
	if coupleID != uuid.Nil {
		r.couples[c.UserID()] = coupleID
	}
	ids, ok := live.members[c.UserID()]
	if !ok {
		ids = make(map[string]struct{})
		live.members[c.UserID()] = ids
	}
	ids[c.ID()] = struct{}{}
	return code
}

// LeaveSession removes the connection from the session. It reports whether
// the connection had joined.
func (r *Registry) LeaveSession(c Conn, sessionID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	ids, ok := live.members[c.UserID()]
	if !ok {
		return false
	}
	if _, joined := ids[c.ID()]; !joined {
		return false
	}
	delete(ids, c.ID())
	if len(ids) == 0 {
		delete(live.members, c.UserID())
	}
	if len(live.members) == 0 {
		delete(r.sessions, sessionID)
	}
	if binding, ok := r.rooms[r.roomBySession[sessionID]]; ok && binding.SocketIDsByUser[c.UserID()] == c.ID() {
		delete(binding.SocketIDsByUser, c.UserID())
	}
	return true
}

// EmitToSession delivers msg to every joined connection of the session's
// participants except those of exclude. Pass uuid.Nil to exclude nobody.
func (r *Registry) EmitToSession(sessionID uuid.UUID, msg *Message, exclude uuid.UUID) int {
	r.mu.RLock()
	var targets []Conn
	if live, ok := r.sessions[sessionID]; ok {
		for userID, ids := range live.members {
			if userID == exclude {
				continue
			}
			for id := range ids {
				if c, ok := r.conns[id]; ok {
					targets = append(targets, c)
				}
			}
		}
	}
	r.mu.RUnlock()

	return deliver(targets, msg)
}

// EmitToUser delivers msg to every live connection of the user.
func (r *Registry) EmitToUser(userID uuid.UUID, msg *Message) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	return deliver(targets, msg)
}

func deliver(targets []Conn, msg *Message) int {
	delivered := 0
	for _, c := range targets {
		if c.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// SyncExternalSession binds a fresh room code to a session created by another
// component. Syncing an already bound session returns its existing code.
func (r *Registry) SyncExternalSession(sessionID, coupleID uuid.UUID, participants []uuid.UUID) (string, error) {
	if sessionID == uuid.Nil {
		return "", domain.Validationf("session id is required")
	}
	if len(participants) != 2 {
		return "", domain.Validationf("session needs exactly two participants, got %d", len(participants))
	}
	if participants[0] == uuid.Nil || participants[1] == uuid.Nil || participants[0] == participants[1] {
		return "", domain.Validationf("session participants must be two distinct users")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if code, ok := r.roomBySession[sessionID]; ok {
		binding := r.rooms[code]
		binding.LastActivity = now
		binding.IsActive = true
		return code, nil
	}

	code, err := r.allocateCodeLocked()
	if err != nil {
		return "", err
	}

	r.rooms[code] = &RoomBinding{
		Code:            code,
		OriginSessionID: sessionID,
		CoupleID:        coupleID,
		Participants:    append([]uuid.UUID(nil), participants...),
		SocketIDsByUser: make(map[uuid.UUID]string),
		CreatedAt:       now,
		LastActivity:    now,
		IsActive:        true,
	}
	r.roomBySession[sessionID] = code
	for _, p := range participants {
		r.couples[p] = coupleID
	}
	metrics.RoomBindings.Set(float64(len(r.rooms)))

	r.log.Debug().
		Str("session_id", sessionID.String()).
		Str("room_code", code).
		Msg("room bound to session")
	return code, nil
}

func (r *Registry) allocateCodeLocked() (string, error) {
	for i := 0; i < roomCodeAttempts; i++ {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrRoomCodeExhausted
}

func newRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

// ResolveSession accepts a session uuid or a bound room code.
func (r *Registry) ResolveSession(idOrCode string) (uuid.UUID, bool) {
	if id, err := uuid.Parse(idOrCode); err == nil {
		return id, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.rooms[strings.ToUpper(strings.TrimSpace(idOrCode))]
	if !ok || !binding.IsActive {
		return uuid.Nil, false
	}
	binding.LastActivity = r.now()
	return binding.OriginSessionID, true
}

// RoomCode returns the code bound to the session, if any.
func (r *Registry) RoomCode(sessionID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.roomBySession[sessionID]
	return code, ok
}

// MarkSessionInactive stops the session's room code from resolving. The
// binding itself is reclaimed by CleanupStale.
func (r *Registry) MarkSessionInactive(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if binding, ok := r.rooms[r.roomBySession[sessionID]]; ok {
		binding.IsActive = false
		binding.LastActivity = r.now()
	}
}

// CleanupStale drops bindings idle for longer than maxAge and returns how
// many were removed. An active binding survives while anyone is joined to its
// session.
func (r *Registry) CleanupStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for code, binding := range r.rooms {
		if binding.IsActive && r.hasMembersLocked(binding.OriginSessionID) {
			continue
		}
		if binding.LastActivity.Before(cutoff) {
			delete(r.rooms, code)
			delete(r.roomBySession, binding.OriginSessionID)
			removed++
		}
	}
	if removed > 0 {
		metrics.RoomBindings.Set(float64(len(r.rooms)))
		r.log.Debug().Int("removed", removed).Msg("stale room bindings removed")
	}
	return removed
}

func (r *Registry) hasMembersLocked(sessionID uuid.UUID) bool {
	live, ok := r.sessions[sessionID]
	return ok && len(live.members) > 0
}

// OnlineParticipants lists users with at least one connection joined to the
// session.
func (r *Registry) OnlineParticipants(sessionID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	live, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	users := make([]uuid.UUID, 0, len(live.members))
	for userID := range live.members {
		users = append(users, userID)
	}
	return users
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// CoupleOf returns the couple the user was last bound to by a join or a
// session sync.
func (r *Registry) CoupleOf(userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.couples[userID]
	return id, ok
}

func (r *Registry) UnbindCouple(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.couples, userID)
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{
		Connections:    len(r.conns),
		OnlineUsers:    len(r.users),
		ActiveSessions: len(r.sessions),
		RoomBindings:   len(r.rooms),
	}
}
