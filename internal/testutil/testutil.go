package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/api"
	"github.com/dom/foodieswipe/internal/config"
	"github.com/dom/foodieswipe/internal/ratelimit"
	"github.com/dom/foodieswipe/internal/repository"
	repoPostgres "github.com/dom/foodieswipe/internal/repository/postgres"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/websocket"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated database for one test.
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB opens a private in-memory sqlite database. The pool is pinned to
// one connection so every query sees the same memory database.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return &TestDB{DB: db, DSN: dsn}
}

// NewPostgresDB starts a PostgreSQL testcontainer. Skipped under -short or
// when no container runtime is available.
func NewPostgresDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_foodieswipe"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	testDB.DSN = dsn

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	testDB.DB = db

	return testDB
}

// Cleanup terminates the container, if any.
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"session_decisions",
		"session_swipes",
		"decision_sessions",
		"couple_invites",
		"couples",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			t.Logf("warning: failed to clear %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	policies := ratelimit.DefaultPolicies()
	policies["authenticate"] = ratelimit.Policy{Max: 100, Window: time.Minute}

	return &config.Config{
		Port:                   "0", // Random port
		Environment:            "test",
		AllowedOrigins:         []string{"*"},
		JWTSecret:              "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours:     1,
		AllowDemoIdentity:      false,
		IdentityTimeout:        2 * time.Second,
		RateLimits:             policies,
		RateLimitSweepInterval: time.Minute,
		RoomBindingMaxAge:      30 * time.Minute,
		RoomCleanupInterval:    time.Minute,
		HTTPRateLimitRPS:       1000,
		HTTPRateLimitBurst:     1000,
		LogLevel:               "disabled",
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Limiter  *ratelimit.Limiter
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	return NewTestServerWithConfig(t, TestConfig())
}

func NewTestServerWithConfig(t *testing.T, cfg *config.Config) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	repos := repoPostgres.NewRepositories(testDB.DB)
	services := service.NewServices(repos, nil, cfg)

	limiter := ratelimit.New(cfg.RateLimits)
	registry := websocket.NewRegistry()
	validator := websocket.NewPermissionValidator(repos.Session, repos.User)
	hub := websocket.NewHub(websocket.HubConfig{
		RoomMaxAge:      cfg.RoomBindingMaxAge,
		CleanupInterval: cfg.RoomCleanupInterval,
	}, registry, limiter, validator, services.Swipe, zerolog.Nop())
	go hub.Run()

	router := api.NewRouter(services, hub, cfg)
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Limiter:  limiter,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	if token == "" {
		return wsURL + "/api/v1/ws"
	}
	return fmt.Sprintf("%s/api/v1/ws?token=%s", wsURL, token)
}
