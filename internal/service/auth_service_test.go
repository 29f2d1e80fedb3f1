package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/repository/postgres"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/testutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	cfg := testutil.TestConfig()
	authService := service.NewAuthService(repos.User, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		input     service.RegisterInput
		setup     func()
		wantErr   error
		checkUser bool
	}{
		{
			name: "successful registration",
			input: service.RegisterInput{
				Email:       "New.User@Example.com",
				DisplayName: "newuser",
				Password:    "password123",
			},
			checkUser: true,
		},
		{
			name: "display name defaults to email local part",
			input: service.RegisterInput{
				Email:    "sam@example.com",
				Password: "password123",
			},
		},
		{
			name: "duplicate email",
			input: service.RegisterInput{
				Email:    "taken@example.com",
				Password: "password123",
			},
			setup: func() {
				testutil.NewUserBuilder().
					WithEmail("taken@example.com").
					Build(t, testDB.DB)
			},
			wantErr: service.ErrEmailExists,
		},
		{
			name: "invalid email",
			input: service.RegisterInput{
				Email:    "not-an-email",
				Password: "password123",
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "short password",
			input: service.RegisterInput{
				Email:    "short@example.com",
				Password: "123",
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clean up between tests
			testDB.Truncate(t)

			if tt.setup != nil {
				tt.setup()
			}

			result, err := authService.Register(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, result.AccessToken)
			assert.Len(t, result.User.UserCode, 6)
			if tt.checkUser {
				assert.Equal(t, "new.user@example.com", result.User.Email)
				assert.Equal(t, tt.input.DisplayName, result.User.DisplayName)
			} else {
				assert.Equal(t, "sam", result.User.DisplayName)
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	authService := service.NewAuthService(repos.User, testutil.TestConfig())
	ctx := context.Background()

	user, password := testutil.NewUserBuilder().WithEmail("login@example.com").Build(t, testDB.DB)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "login@example.com", password: password},
		{name: "email is case insensitive", email: "LOGIN@example.com", password: password},
		{name: "wrong password", email: "login@example.com", password: "nope", wantErr: service.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: password, wantErr: service.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := authService.Login(ctx, service.LoginInput{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, result.User.ID)
			assert.NotEmpty(t, result.AccessToken)
		})
	}
}

func TestAuthService_Verify(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	cfg := testutil.TestConfig()
	authService := service.NewAuthService(repos.User, cfg)

	user, _ := testutil.NewUserBuilder().WithDisplayName("verify").Build(t, testDB.DB)

	sign := func(secret string, claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	t.Run("issued token round trips", func(t *testing.T) {
		token, err := authService.IssueToken(user)
		require.NoError(t, err)

		claims, err := authService.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, user.Email, claims.Email)
		assert.Equal(t, "verify", claims.DisplayName)
		assert.True(t, claims.ExpiresAt.After(time.Now()))
	})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name: "expired",
			token: sign(cfg.JWTSecret, jwt.MapClaims{
				"sub": user.ID.String(),
				"exp": time.Now().Add(-time.Minute).Unix(),
			}),
			wantErr: domain.ErrExpiredCredential,
		},
		{
			name: "wrong secret",
			token: sign("another-secret", jwt.MapClaims{
				"sub": user.ID.String(),
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidCredential,
		},
		{
			name: "subject is not a uuid",
			token: sign(cfg.JWTSecret, jwt.MapClaims{
				"sub": "alice",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: domain.ErrInvalidCredential,
		},
		{name: "garbage", token: "abc.def.ghi", wantErr: domain.ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authService.Verify(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_GetUserByID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	authService := service.NewAuthService(repos.User, testutil.TestConfig())
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	got, err := authService.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = authService.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
