package postgres

import (
	"context"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type coupleRepository struct {
	db *gorm.DB
}

func NewCoupleRepository(db *gorm.DB) *coupleRepository {
	return &coupleRepository{db: db}
}

func (r *coupleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Couple, error) {
	var couple domain.Couple
	err := r.db.WithContext(ctx).First(&couple, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &couple, nil
}

func (r *coupleRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Couple, error) {
	var couple domain.Couple
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		First(&couple).Error
	if err != nil {
		return nil, err
	}
	return &couple, nil
}

func (r *coupleRepository) Pair(ctx context.Context, couple *domain.Couple, invite *domain.CoupleInvite) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(couple).Error; err != nil {
			return err
		}

		if err := linkPartner(tx, couple.User1ID, couple.User2ID, couple.ID); err != nil {
			return err
		}
		if err := linkPartner(tx, couple.User2ID, couple.User1ID, couple.ID); err != nil {
			return err
		}

		return tx.Save(invite).Error
	})
}

func linkPartner(tx *gorm.DB, userID, partnerID, coupleID uuid.UUID) error {
	return tx.Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"partner_id": partnerID,
			"couple_id":  coupleID,
			"updated_at": time.Now(),
		}).Error
}

func (r *coupleRepository) Dissolve(ctx context.Context, coupleID, endedBy uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var couple domain.Couple
		if err := tx.First(&couple, "id = ?", coupleID).Error; err != nil {
			return err
		}

		err := tx.Model(&domain.Couple{}).
			Where("id = ?", coupleID).
			Updates(map[string]interface{}{
				"is_active": false,
				"ended_at":  at,
				"ended_by":  endedBy,
			}).Error
		if err != nil {
			return err
		}

		err = tx.Model(&domain.User{}).
			Where("id IN ?", []uuid.UUID{couple.User1ID, couple.User2ID}).
			Updates(map[string]interface{}{
				"partner_id": nil,
				"couple_id":  nil,
				"updated_at": at,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&domain.Session{}).
			Where("couple_id = ? AND is_active = ?", coupleID, true).
			Updates(map[string]interface{}{
				"is_active": false,
				"ended_at":  at,
			}).Error
	})
}

func (r *coupleRepository) IncrementStats(ctx context.Context, coupleID uuid.UUID, delta domain.CoupleStatsDelta) error {
	return incrementCoupleStats(r.db.WithContext(ctx), coupleID, delta)
}

func incrementCoupleStats(db *gorm.DB, coupleID uuid.UUID, delta domain.CoupleStatsDelta) error {
	return db.Model(&domain.Couple{}).
		Where("id = ?", coupleID).
		Updates(map[string]interface{}{
			"total_decisions": gorm.Expr("total_decisions + ?", delta.Decisions),
			"total_matches":   gorm.Expr("total_matches + ?", delta.Matches),
		}).Error
}
