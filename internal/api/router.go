package api

import (
	"net/http"

	"github.com/dom/foodieswipe/internal/api/handlers"
	"github.com/dom/foodieswipe/internal/api/middleware"
	"github.com/dom/foodieswipe/internal/config"
	"github.com/dom/foodieswipe/internal/logger"
	"github.com/dom/foodieswipe/internal/metrics"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	authenticator := websocket.NewAuthenticator(services.Auth, services.Auth, websocket.AuthenticatorConfig{
		AllowDemo: cfg.AllowDemoIdentity,
		Timeout:   cfg.IdentityTimeout,
	}, logger.WithComponent("authenticator"))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth)
	coupleHandler := handlers.NewCoupleHandler(services.Couple, services.Session, hub)
	sessionHandler := handlers.NewSessionHandler(services.Session, services.Swipe, hub)
	realtimeHandler := handlers.NewRealtimeHandler(hub)
	wsHandler := handlers.NewWebSocketHandler(hub, authenticator, cfg.AllowedOrigins)

	ipLimiter := middleware.NewIPRateLimiter(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ipLimiter.Handler)

			// Public auth routes
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)

				// Protected auth routes
				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth(services.Auth))
					r.Get("/me", authHandler.Me)
				})
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth))

				r.Route("/couples", func(r chi.Router) {
					r.Get("/me", coupleHandler.Get)
					r.Delete("/me", coupleHandler.Breakup)
					r.Get("/me/stats", coupleHandler.Stats)
					r.Get("/invites", coupleHandler.ListInvites)
					r.Post("/invites", coupleHandler.SendInvite)
					r.Post("/invites/{id}/accept", coupleHandler.AcceptInvite)
					r.Post("/invites/{id}/reject", coupleHandler.RejectInvite)
				})

				r.Route("/sessions", func(r chi.Router) {
					r.Post("/", sessionHandler.Start)
					r.Get("/current", sessionHandler.Current)
					r.Get("/history", sessionHandler.History)
					r.Get("/{id}", sessionHandler.Get)
					r.Post("/{id}/end", sessionHandler.End)
					r.Post("/{id}/swipes", sessionHandler.Swipe)
				})

				r.Route("/realtime", func(r chi.Router) {
					r.Get("/stats", realtimeHandler.Stats)
					r.Get("/presence", realtimeHandler.Presence)
					r.Get("/ratelimit/{event}", realtimeHandler.RateLimitStatus)
				})
			})
		})

		// WebSocket endpoint; socket events have their own limiter.
		r.Get("/ws", wsHandler.Handle)
	})

	return r
}
