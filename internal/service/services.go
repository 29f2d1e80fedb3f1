package service

import (
	"github.com/dom/foodieswipe/internal/config"
	"github.com/dom/foodieswipe/internal/logger"
	"github.com/dom/foodieswipe/internal/repository"
)

type Services struct {
	Auth    *AuthService
	Couple  *CoupleService
	Session *SessionService
	Swipe   *SwipeEngine
}

// NewServices wires the services. counter may be nil to run without the
// stats cache.
func NewServices(repos *repository.Repositories, counter MatchCounter, cfg *config.Config) *Services {
	return &Services{
		Auth:    NewAuthService(repos.User, cfg),
		Couple:  NewCoupleService(repos.User, repos.Couple, repos.Invite, counter, logger.WithComponent("couple_service")),
		Session: NewSessionService(repos.Couple, repos.Session, logger.WithComponent("session_service")),
		Swipe:   NewSwipeEngine(repos.Session, counter, logger.WithComponent("swipe_engine")),
	}
}
