package repository

import (
	"context"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUserCode(ctx context.Context, code string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type CoupleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Couple, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Couple, error)
	// Pair creates the couple, links both users to it and marks the invite
	// accepted in one transaction.
	Pair(ctx context.Context, couple *domain.Couple, invite *domain.CoupleInvite) error
	// Dissolve deactivates the couple, clears both users' partner links and
	// ends any active session of the couple in one transaction.
	Dissolve(ctx context.Context, coupleID, endedBy uuid.UUID, at time.Time) error
	IncrementStats(ctx context.Context, coupleID uuid.UUID, delta domain.CoupleStatsDelta) error
}

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.CoupleInvite) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CoupleInvite, error)
	GetPendingBetween(ctx context.Context, fromUserID, toUserID uuid.UUID) (*domain.CoupleInvite, error)
	ListPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.CoupleInvite, error)
	Update(ctx context.Context, invite *domain.CoupleInvite) error
}

// SessionRepository is the durable store of decision sessions. Swipes are
// append-only and a decision is committed at most once per session.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	GetActiveByCoupleID(ctx context.Context, coupleID uuid.UUID) (*domain.Session, error)
	// End marks an open session inactive. It reports false if the session was
	// already closed.
	End(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	AppendSwipe(ctx context.Context, swipe *domain.SwipeRecord) error
	ListSwipes(ctx context.Context, sessionID uuid.UUID) ([]*domain.SwipeRecord, error)

	// CommitDecisionIfAbsent closes the session with decision and bumps the
	// couple's counters, but only if the session has no decision yet. It
	// reports whether this call committed.
	CommitDecisionIfAbsent(ctx context.Context, decision *domain.Decision) (bool, error)
	ListDecisionsByCouple(ctx context.Context, coupleID uuid.UUID, limit int) ([]*domain.Decision, error)
}

type Repositories struct {
	User    UserRepository
	Couple  CoupleRepository
	Invite  InviteRepository
	Session SessionRepository
}
