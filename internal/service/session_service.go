package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 20

// SessionService manages the lifecycle of decision sessions in the durable
// store. Swipes go through SwipeEngine.
type SessionService struct {
	coupleRepo  repository.CoupleRepository
	sessionRepo repository.SessionRepository
	log         zerolog.Logger
	now         func() time.Time
}

func NewSessionService(coupleRepo repository.CoupleRepository, sessionRepo repository.SessionRepository, log zerolog.Logger) *SessionService {
	return &SessionService{
		coupleRepo:  coupleRepo,
		sessionRepo: sessionRepo,
		log:         log,
		now:         time.Now,
	}
}

// StartSession returns the couple's open session, creating one if there is
// none. The bool reports whether a new session was created.
func (s *SessionService) StartSession(ctx context.Context, userID uuid.UUID) (*domain.Session, bool, error) {
	couple, err := s.coupleRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, false, lookup(err, domain.ErrNotPaired, "get couple")
	}

	existing, err := s.sessionRepo.GetActiveByCoupleID(ctx, couple.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, domain.Upstream("get active session", err)
	}

	session := &domain.Session{
		ID:        uuid.New(),
		CoupleID:  couple.ID,
		User1ID:   couple.User1ID,
		User2ID:   couple.User2ID,
		StartedBy: userID,
		IsActive:  true,
		StartedAt: s.now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, false, domain.Upstream("create session", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("couple_id", couple.ID.String()).
		Msg("decision session started")
	return session, true, nil
}

// GetSession loads a session visible to userID.
func (s *SessionService) GetSession(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, lookup(err, domain.ErrSessionNotFound, "get session")
	}
	if !session.HasParticipant(userID) {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

func (s *SessionService) CurrentSession(ctx context.Context, userID uuid.UUID) (*domain.Session, error) {
	couple, err := s.coupleRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, lookup(err, domain.ErrNotPaired, "get couple")
	}

	session, err := s.sessionRepo.GetActiveByCoupleID(ctx, couple.ID)
	if err != nil {
		return nil, lookup(err, domain.ErrSessionNotFound, "get active session")
	}
	return session, nil
}

// EndSession closes an open session without a decision.
func (s *SessionService) EndSession(ctx context.Context, sessionID, userID uuid.UUID) (*domain.Session, error) {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ended, err := s.sessionRepo.End(ctx, sessionID, now)
	if err != nil {
		return nil, domain.Upstream("end session", err)
	}
	if !ended {
		return nil, domain.ErrSessionNotActive
	}

	session.IsActive = false
	session.EndedAt = &now
	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("ended_by", userID.String()).
		Msg("decision session ended")
	return session, nil
}

// History lists the couple's most recent decisions.
func (s *SessionService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Decision, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	couple, err := s.coupleRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, lookup(err, domain.ErrNotPaired, "get couple")
	}

	decisions, err := s.sessionRepo.ListDecisionsByCouple(ctx, couple.ID, limit)
	if err != nil {
		return nil, domain.Upstream("list decisions", err)
	}
	return decisions, nil
}
