package postgres

import (
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table the repositories use.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Couple{},
		&domain.CoupleInvite{},
		&domain.Session{},
		&domain.SwipeRecord{},
		&domain.Decision{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:    NewUserRepository(db),
		Couple:  NewCoupleRepository(db),
		Invite:  NewInviteRepository(db),
		Session: NewSessionRepository(db),
	}
}
