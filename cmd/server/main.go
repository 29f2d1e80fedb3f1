package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/foodieswipe/internal/api"
	"github.com/dom/foodieswipe/internal/cache"
	"github.com/dom/foodieswipe/internal/config"
	"github.com/dom/foodieswipe/internal/logger"
	"github.com/dom/foodieswipe/internal/ratelimit"
	"github.com/dom/foodieswipe/internal/repository/postgres"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(logger.Config{
		Level:      logger.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	log := logger.WithComponent("main")

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Stats cache is optional; a nil counter disables it.
	var counter service.MatchCounter
	if cfg.RedisAddr != "" {
		statsCache := cache.NewStatsCache(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := statsCache.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, stats cache disabled")
			statsCache.Close()
		} else {
			counter = statsCache
			defer statsCache.Close()
		}
	}

	// Initialize services
	services := service.NewServices(repos, counter, cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	limiter := ratelimit.New(cfg.RateLimits, ratelimit.WithLogger(logger.WithComponent("ratelimit")))
	go limiter.Run(ctx, cfg.RateLimitSweepInterval)

	// Initialize WebSocket hub
	registry := websocket.NewRegistry(websocket.WithRegistryLogger(logger.WithComponent("registry")))
	validator := websocket.NewPermissionValidator(repos.Session, repos.User)
	hub := websocket.NewHub(websocket.HubConfig{
		RoomMaxAge:      cfg.RoomBindingMaxAge,
		CleanupInterval: cfg.RoomCleanupInterval,
	}, registry, limiter, validator, services.Swipe, logger.WithComponent("hub"))
	go hub.Run()

	// Initialize router
	router := api.NewRouter(services, hub, cfg)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Stop()
	stop()

	log.Info().Msg("server stopped")
}
