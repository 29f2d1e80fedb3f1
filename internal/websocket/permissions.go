package websocket

import (
	"context"
	"errors"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionScope is what an event touches. uuid.Nil fields are absent.
type PermissionScope struct {
	SessionID uuid.UUID
	PartnerID uuid.UUID
}

// PermissionValidator checks an identity against the durable session and
// partner records.
type PermissionValidator struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
}

func NewPermissionValidator(sessions repository.SessionRepository, users repository.UserRepository) *PermissionValidator {
	return &PermissionValidator{sessions: sessions, users: users}
}

func (v *PermissionValidator) Validate(ctx context.Context, identity *Identity, scope PermissionScope) error {
	if identity == nil || identity.UserID == uuid.Nil {
		return domain.ErrNotAuthenticated
	}
	if scope.SessionID != uuid.Nil {
		if err := v.ValidateSessionAccess(ctx, identity.UserID, scope.SessionID); err != nil {
			return err
		}
	}
	if scope.PartnerID != uuid.Nil {
		if err := v.ValidatePartnerAccess(ctx, identity.UserID, scope.PartnerID); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSessionAccess requires userID to be one of the session's two
// participants. Closed sessions still pass; the engine rejects writes to them.
func (v *PermissionValidator) ValidateSessionAccess(ctx context.Context, userID, sessionID uuid.UUID) error {
	_, err := v.AccessibleSession(ctx, userID, sessionID)
	return err
}

// AccessibleSession loads the session after the same checks as
// ValidateSessionAccess.
func (v *PermissionValidator) AccessibleSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.Session, error) {
	session, err := v.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.Upstream("get session", err)
	}
	if !session.HasParticipant(userID) {
		return nil, domain.ErrUnauthorized
	}
	return session, nil
}

// ValidatePartnerAccess requires partnerID to be userID's current partner.
func (v *PermissionValidator) ValidatePartnerAccess(ctx context.Context, userID, partnerID uuid.UUID) error {
	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotPartners
		}
		return domain.Upstream("get user", err)
	}
	if !user.IsPartneredWith(partnerID) {
		return domain.ErrNotPartners
	}
	return nil
}
