package postgres

import (
	"context"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Preload("Decision").
		First(&session, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetActiveByCoupleID(ctx context.Context, coupleID uuid.UUID) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Where("couple_id = ? AND is_active = ? AND has_decision = ?", coupleID, true, false).
		Order("started_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) End(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sessionRepository) AppendSwipe(ctx context.Context, swipe *domain.SwipeRecord) error {
	return r.db.WithContext(ctx).Create(swipe).Error
}

func (r *sessionRepository) ListSwipes(ctx context.Context, sessionID uuid.UUID) ([]*domain.SwipeRecord, error) {
	var swipes []*domain.SwipeRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&swipes).Error
	if err != nil {
		return nil, err
	}
	return swipes, nil
}

func (r *sessionRepository) CommitDecisionIfAbsent(ctx context.Context, decision *domain.Decision) (bool, error) {
	committed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The has_decision guard makes the commit conditional even when two
		// processes race on the same session.
		result := tx.Model(&domain.Session{}).
			Where("id = ? AND has_decision = ?", decision.SessionID, false).
			Updates(map[string]interface{}{
				"has_decision": true,
				"is_active":    false,
				"ended_at":     decision.DecidedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Create(decision).Error; err != nil {
			return err
		}

		if err := incrementCoupleStats(tx, decision.CoupleID, domain.CoupleStatsDelta{Decisions: 1, Matches: 1}); err != nil {
			return err
		}

		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return committed, nil
}

func (r *sessionRepository) ListDecisionsByCouple(ctx context.Context, coupleID uuid.UUID, limit int) ([]*domain.Decision, error) {
	var decisions []*domain.Decision
	err := r.db.WithContext(ctx).
		Where("couple_id = ?", coupleID).
		Order("decided_at DESC").
		Limit(limit).
		Find(&decisions).Error
	if err != nil {
		return nil, err
	}
	return decisions, nil
}
