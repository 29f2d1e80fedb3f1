package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/metrics"
	"github.com/dom/foodieswipe/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

type SwipeInput struct {
	DishID       string
	RestaurantID string
	Action       domain.SwipeAction
	DishData     json.RawMessage
}

func (in SwipeInput) validate() error {
	if strings.TrimSpace(in.DishID) == "" {
		return domain.Validationf("dishId is required")
	}
	if !in.Action.IsValid() {
		return domain.Validationf("invalid action %q", in.Action)
	}
	if len(in.DishData) > 0 && !json.Valid(in.DishData) {
		return domain.Validationf("dishData must be valid JSON")
	}
	return nil
}

type SwipeResult struct {
	IsMatch           bool
	WaitingForPartner bool
	// AlreadyDecided is set when a concurrent swipe committed the session's
	// decision first.
	AlreadyDecided bool
	Decision       *domain.Decision
	PartnerID      uuid.UUID
	Swipe          *domain.SwipeRecord
}

// SwipeEngine reconciles the two partners' swipes into at most one decision
// per session.
type SwipeEngine struct {
	sessionRepo repository.SessionRepository
	counter     MatchCounter
	locks       *keyedMutex
	log         zerolog.Logger
	now         func() time.Time
}

func NewSwipeEngine(sessionRepo repository.SessionRepository, counter MatchCounter, log zerolog.Logger) *SwipeEngine {
	return &SwipeEngine{
		sessionRepo: sessionRepo,
		counter:     counter,
		locks:       newKeyedMutex(),
		log:         log,
		now:         time.Now,
	}
}

// RecordSwipe appends userID's swipe to the session log and commits a decision
// when it completes a mutual like with the partner's earlier swipe on the same
// dish.
func (e *SwipeEngine) RecordSwipe(ctx context.Context, sessionID, userID uuid.UUID, in SwipeInput) (*SwipeResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	session, err := e.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, domain.ErrSessionNotFound, "get session")
	}
	if !session.IsOpen() {
		return nil, domain.ErrSessionNotActive
	}
	if !session.HasParticipant(userID) {
		return nil, domain.ErrUnauthorized
	}
	partnerID, err := partnerOf(session, userID)
	if err != nil {
		return nil, err
	}

	swipe := &domain.SwipeRecord{
		SessionID:    sessionID,
		UserID:       userID,
		DishID:       in.DishID,
		RestaurantID: in.RestaurantID,
		Action:       in.Action,
		DishData:     datatypes.JSON(in.DishData),
		CreatedAt:    e.now(),
	}
	if err := e.sessionRepo.AppendSwipe(ctx, swipe); err != nil {
		return nil, domain.Upstream("append swipe", err)
	}
	metrics.SwipesTotal.WithLabelValues(string(in.Action)).Inc()

	swipes, err := e.sessionRepo.ListSwipes(ctx, sessionID)
	if err != nil {
		return nil, domain.Upstream("list swipes", err)
	}

	result := &SwipeResult{PartnerID: partnerID, Swipe: swipe}

	partnerSwipe := firstSwipe(swipes, partnerID, in.DishID, in.RestaurantID)
	if partnerSwipe == nil {
		result.WaitingForPartner = true
		return result, nil
	}

	if !in.Action.IsPositive() || !partnerSwipe.Action.IsPositive() {
		return result, nil
	}

	// The current swipe completed the pair, so the match is attributed to it.
	decision := &domain.Decision{
		SessionID:    sessionID,
		CoupleID:     session.CoupleID,
		DishID:       in.DishID,
		RestaurantID: in.RestaurantID,
		DishData:     pickDishData(swipe, partnerSwipe),
		DecidedAt:    e.now(),
		DecidedBy:    userID,
		PartnerID:    partnerID,
	}

	committed, err := e.sessionRepo.CommitDecisionIfAbsent(ctx, decision)
	if err != nil {
		return nil, domain.Upstream("commit decision", err)
	}
	if !committed {
		e.log.Info().
			Str("session_id", sessionID.String()).
			Msg("match already decided by a concurrent swipe")
		result.AlreadyDecided = true
		return result, nil
	}

	metrics.MatchesTotal.Inc()
	if e.counter != nil {
		if err := e.counter.IncrMatchCount(ctx, session.CoupleID); err != nil {
			e.log.Warn().Err(err).Msg("stats cache increment failed")
		}
	}

	e.log.Info().
		Str("session_id", sessionID.String()).
		Str("dish_id", in.DishID).
		Str("restaurant_id", in.RestaurantID).
		Msg("match found")

	result.IsMatch = true
	result.Decision = decision
	return result, nil
}

// partnerOf fails fast unless the session has exactly two distinct
// participants.
func partnerOf(session *domain.Session, userID uuid.UUID) (uuid.UUID, error) {
	participants := session.Participants()
	if len(participants) != 2 || participants[0] == participants[1] ||
		participants[0] == uuid.Nil || participants[1] == uuid.Nil {
		return uuid.Nil, domain.ErrInvalidSession
	}
	if participants[0] == userID {
		return participants[1], nil
	}
	return participants[0], nil
}

// firstSwipe returns userID's earliest swipe on the dish, or nil. Later
// swipes on the same dish never override it.
func firstSwipe(swipes []*domain.SwipeRecord, userID uuid.UUID, dishID, restaurantID string) *domain.SwipeRecord {
	for _, s := range swipes {
		if s.UserID == userID && s.SameDish(dishID, restaurantID) {
			return s
		}
	}
	return nil
}

func pickDishData(current, partner *domain.SwipeRecord) datatypes.JSON {
	if len(current.DishData) > 0 {
		return current.DishData
	}
	return partner.DishData
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*refMutex)}
}

// Lock blocks until key is held and returns its release func.
func (k *keyedMutex) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
