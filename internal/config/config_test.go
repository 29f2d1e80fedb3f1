package config

import (
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "missing jwt secret",
			env:     map[string]string{"JWT_SECRET": ""},
			wantErr: true,
		},
		{
			name: "development allows demo identity by default",
			env: map[string]string{
				"JWT_SECRET":  "secret",
				"ENVIRONMENT": "development",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.AllowDemoIdentity)
				assert.Equal(t, 5*time.Second, cfg.IdentityTimeout)
				assert.Equal(t, ratelimit.Policy{Max: 100, Window: time.Minute}, cfg.RateLimits["couple_swipe"])
			},
		},
		{
			name: "production never allows demo identity",
			env: map[string]string{
				"JWT_SECRET":             "secret",
				"ENVIRONMENT":            "production",
				"WS_ALLOW_DEMO_IDENTITY": "true",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.AllowDemoIdentity)
				assert.True(t, cfg.LogJSON)
			},
		},
		{
			name: "rate limit override",
			env: map[string]string{
				"JWT_SECRET":              "secret",
				"RATE_LIMIT_COUPLE_SWIPE": "3/1s",
				"RATE_LIMIT_SESSION_JOIN": "garbage",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ratelimit.Policy{Max: 3, Window: time.Second}, cfg.RateLimits["couple_swipe"])
				assert.Equal(t, ratelimit.Policy{Max: 10, Window: time.Minute}, cfg.RateLimits["session_join"])
			},
		},
		{
			name: "allowed origins list",
			env: map[string]string{
				"JWT_SECRET":      "secret",
				"ALLOWED_ORIGINS": "https://a.example, https://b.example",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    ratelimit.Policy
		wantErr bool
	}{
		{raw: "5/1m", want: ratelimit.Policy{Max: 5, Window: time.Minute}},
		{raw: " 10 / 30s ", want: ratelimit.Policy{Max: 10, Window: 30 * time.Second}},
		{raw: "5", wantErr: true},
		{raw: "0/1m", wantErr: true},
		{raw: "5/forever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parsePolicy(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
