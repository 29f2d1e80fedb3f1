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

// MatchCounter caches per-couple match counts. Every decision in this system
// is a match, so one counter serves both aggregate stats.
type MatchCounter interface {
	GetMatchCount(ctx context.Context, coupleID uuid.UUID) (int64, bool, error)
	SetMatchCount(ctx context.Context, coupleID uuid.UUID, count int64) error
	IncrMatchCount(ctx context.Context, coupleID uuid.UUID) error
	Invalidate(ctx context.Context, coupleID uuid.UUID) error
}

type CoupleService struct {
	userRepo   repository.UserRepository
	coupleRepo repository.CoupleRepository
	inviteRepo repository.InviteRepository
	counter    MatchCounter
	log        zerolog.Logger
	now        func() time.Time
}

func NewCoupleService(
	userRepo repository.UserRepository,
	coupleRepo repository.CoupleRepository,
	inviteRepo repository.InviteRepository,
	counter MatchCounter,
	log zerolog.Logger,
) *CoupleService {
	return &CoupleService{
		userRepo:   userRepo,
		coupleRepo: coupleRepo,
		inviteRepo: inviteRepo,
		counter:    counter,
		log:        log,
		now:        time.Now,
	}
}

type CoupleStats struct {
	CoupleID       uuid.UUID `json:"coupleId"`
	TotalDecisions int64     `json:"totalDecisions"`
	TotalMatches   int64     `json:"totalMatches"`
	Cached         bool      `json:"cached"`
}

// lookup maps a repository error to notFound or an upstream failure.
func lookup(err, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return domain.Upstream(op, err)
}

// SendInvite invites the owner of partnerCode to form a couple with fromUserID.
// A pending invite between the same users is returned instead of duplicated.
func (s *CoupleService) SendInvite(ctx context.Context, fromUserID uuid.UUID, partnerCode string) (*domain.CoupleInvite, error) {
	if partnerCode == "" {
		return nil, domain.Validationf("partner code is required")
	}

	from, err := s.userRepo.GetByID(ctx, fromUserID)
	if err != nil {
		return nil, lookup(err, domain.ErrUserNotFound, "get user")
	}
	if from.PartnerID != nil {
		return nil, domain.ErrAlreadyPaired
	}

	to, err := s.userRepo.GetByUserCode(ctx, partnerCode)
	if err != nil {
		return nil, lookup(err, domain.ErrUserNotFound, "get user by code")
	}
	if to.ID == from.ID {
		return nil, domain.ErrSelfInvite
	}
	if to.PartnerID != nil {
		return nil, domain.ErrAlreadyPaired
	}

	if existing, err := s.inviteRepo.GetPendingBetween(ctx, from.ID, to.ID); err == nil && !existing.IsExpired(s.now()) {
		return existing, nil
	}

	now := s.now()
	invite := &domain.CoupleInvite{
		ID:         uuid.New(),
		FromUserID: from.ID,
		ToUserID:   to.ID,
		Status:     domain.InviteStatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(domain.InviteTTL),
	}
	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, domain.Upstream("create invite", err)
	}

	s.log.Info().
		Str("from", from.ID.String()).
		Str("to", to.ID.String()).
		Msg("couple invite sent")
	return invite, nil
}

func (s *CoupleService) PendingInvites(ctx context.Context, userID uuid.UUID) ([]*domain.CoupleInvite, error) {
	invites, err := s.inviteRepo.ListPendingForUser(ctx, userID, s.now())
	if err != nil {
		return nil, domain.Upstream("list invites", err)
	}
	return invites, nil
}

// pendingInviteFor loads an invite addressed to userID that can still be
// answered. Expired invites are marked as such on the way.
func (s *CoupleService) pendingInviteFor(ctx context.Context, inviteID, userID uuid.UUID) (*domain.CoupleInvite, error) {
	invite, err := s.inviteRepo.GetByID(ctx, inviteID)
	if err != nil {
		return nil, lookup(err, domain.ErrInviteNotFound, "get invite")
	}
	if invite.ToUserID != userID {
		return nil, domain.ErrInviteNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return nil, domain.ErrInviteNotPending
	}
	if invite.IsExpired(s.now()) {
		invite.Status = domain.InviteStatusExpired
		if err := s.inviteRepo.Update(ctx, invite); err != nil {
			return nil, domain.Upstream("expire invite", err)
		}
		return nil, domain.ErrInviteExpired
	}
	return invite, nil
}

// AcceptInvite pairs the inviter and userID.
func (s *CoupleService) AcceptInvite(ctx context.Context, inviteID, userID uuid.UUID) (*domain.Couple, error) {
	invite, err := s.pendingInviteFor(ctx, inviteID, userID)
	if err != nil {
		return nil, err
	}

	for _, id := range []uuid.UUID{invite.FromUserID, invite.ToUserID} {
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, lookup(err, domain.ErrUserNotFound, "get user")
		}
		if u.PartnerID != nil {
			return nil, domain.ErrAlreadyPaired
		}
	}

	now := s.now()
	couple := &domain.Couple{
		ID:        uuid.New(),
		User1ID:   invite.FromUserID,
		User2ID:   invite.ToUserID,
		IsActive:  true,
		CreatedAt: now,
	}
	invite.Status = domain.InviteStatusAccepted
	invite.CoupleID = &couple.ID
	invite.RespondedAt = &now

	if err := s.coupleRepo.Pair(ctx, couple, invite); err != nil {
		return nil, domain.Upstream("pair couple", err)
	}

	s.log.Info().Str("couple_id", couple.ID.String()).Msg("couple created")
	return couple, nil
}

func (s *CoupleService) RejectInvite(ctx context.Context, inviteID, userID uuid.UUID) error {
	invite, err := s.pendingInviteFor(ctx, inviteID, userID)
	if err != nil {
		return err
	}

	now := s.now()
	invite.Status = domain.InviteStatusRejected
	invite.RespondedAt = &now
	if err := s.inviteRepo.Update(ctx, invite); err != nil {
		return domain.Upstream("reject invite", err)
	}
	return nil
}

// GetCouple returns the active couple of userID.
func (s *CoupleService) GetCouple(ctx context.Context, userID uuid.UUID) (*domain.Couple, error) {
	couple, err := s.coupleRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, lookup(err, domain.ErrNotPaired, "get couple")
	}
	return couple, nil
}

// Breakup dissolves the active couple of userID and returns it so callers can
// notify the former partner.
func (s *CoupleService) Breakup(ctx context.Context, userID uuid.UUID) (*domain.Couple, error) {
	couple, err := s.GetCouple(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.coupleRepo.Dissolve(ctx, couple.ID, userID, s.now()); err != nil {
		return nil, domain.Upstream("dissolve couple", err)
	}
	if s.counter != nil {
		if err := s.counter.Invalidate(ctx, couple.ID); err != nil {
			s.log.Warn().Err(err).Msg("stats cache invalidate failed")
		}
	}

	s.log.Info().
		Str("couple_id", couple.ID.String()).
		Str("ended_by", userID.String()).
		Msg("couple dissolved")
	return couple, nil
}

// Stats serves the match counter from the cache when possible and seeds it
// from the couple record on a miss.
func (s *CoupleService) Stats(ctx context.Context, userID uuid.UUID) (*CoupleStats, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookup(err, domain.ErrUserNotFound, "get user")
	}
	if user.CoupleID == nil {
		return nil, domain.ErrNotPaired
	}
	coupleID := *user.CoupleID

	if s.counter != nil {
		n, ok, err := s.counter.GetMatchCount(ctx, coupleID)
		if err != nil {
			s.log.Warn().Err(err).Msg("stats cache read failed")
		} else if ok {
			return &CoupleStats{CoupleID: coupleID, TotalDecisions: n, TotalMatches: n, Cached: true}, nil
		}
	}

	couple, err := s.coupleRepo.GetByID(ctx, coupleID)
	if err != nil {
		return nil, lookup(err, domain.ErrCoupleNotFound, "get couple")
	}

	if s.counter != nil {
		if err := s.counter.SetMatchCount(ctx, coupleID, int64(couple.TotalMatches)); err != nil {
			s.log.Warn().Err(err).Msg("stats cache write failed")
		}
	}

	return &CoupleStats{
		CoupleID:       coupleID,
		TotalDecisions: int64(couple.TotalDecisions),
		TotalMatches:   int64(couple.TotalMatches),
	}, nil
}
