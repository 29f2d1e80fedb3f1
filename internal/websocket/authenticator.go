package websocket

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultIdentityTimeout = 5 * time.Second

// DemoUserID is the fixed identity handed out when demo connections are
// allowed and no credential is supplied.
var DemoUserID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("foodieswipe:demo-user"))

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Demo        bool
}

type IdentityVerifier interface {
	Verify(token string) (*service.Claims, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type AuthenticatorConfig struct {
	AllowDemo bool
	Timeout   time.Duration
}

// Authenticator resolves a handshake credential to an Identity.
type Authenticator struct {
	verifier IdentityVerifier
	users    UserLookup
	cfg      AuthenticatorConfig
	log      zerolog.Logger
}

func NewAuthenticator(verifier IdentityVerifier, users UserLookup, cfg AuthenticatorConfig, log zerolog.Logger) *Authenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultIdentityTimeout
	}
	return &Authenticator{verifier: verifier, users: users, cfg: cfg, log: log}
}

// Authenticate verifies credential and confirms the user still exists.
// Failures are one of domain.ErrNotAuthenticated, ErrInvalidCredential,
// ErrExpiredCredential, ErrUserNotFound or ErrUpstreamUnavailable.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		if a.cfg.AllowDemo {
			a.log.Warn().Msg("connection accepted with demo identity")
			return &Identity{
				UserID:      DemoUserID,
				Email:       "demo@test.com",
				DisplayName: "Demo User",
				Demo:        true,
			}, nil
		}
		return nil, domain.ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	claims, err := a.verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, domain.Upstream("lookup user", ctx.Err())
		}
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, domain.Upstream("lookup user", err)
	}

	return &Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, nil
}

func (a *Authenticator) verify(ctx context.Context, credential string) (*service.Claims, error) {
	type result struct {
		claims *service.Claims
		err    error
	}
	done := make(chan result, 1)
	go func() {
		claims, err := a.verifier.Verify(credential)
		done <- result{claims: claims, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.Upstream("verify credential", ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, domain.ErrExpiredCredential) {
				return nil, domain.ErrExpiredCredential
			}
			if errors.Is(r.err, domain.ErrUpstreamUnavailable) {
				return nil, r.err
			}
			return nil, domain.ErrInvalidCredential
		}
		return r.claims, nil
	}
}

// CredentialFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter browsers must use for sockets.
func CredentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}
