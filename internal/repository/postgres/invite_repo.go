package postgres

import (
	"context"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) *inviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, invite *domain.CoupleInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *inviteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CoupleInvite, error) {
	var invite domain.CoupleInvite
	err := r.db.WithContext(ctx).First(&invite, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) GetPendingBetween(ctx context.Context, fromUserID, toUserID uuid.UUID) (*domain.CoupleInvite, error) {
	var invite domain.CoupleInvite
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromUserID, toUserID, domain.InviteStatusPending).
		First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) ListPendingForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]*domain.CoupleInvite, error) {
	var invites []*domain.CoupleInvite
	err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ? AND expires_at > ?", userID, domain.InviteStatusPending, now).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *inviteRepository) Update(ctx context.Context, invite *domain.CoupleInvite) error {
	return r.db.WithContext(ctx).Save(invite).Error
}
