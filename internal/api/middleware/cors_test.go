package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
		wantCreds  string
	}{
		{
			name:       "listed origin",
			allowed:    []string{"https://app.example"},
			method:     http.MethodGet,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://app.example",
			wantCreds:  "true",
		},
		{
			name:       "unlisted origin",
			allowed:    []string{"https://app.example"},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard without credentials",
			allowed:    []string{"*"},
			method:     http.MethodGet,
			origin:     "https://any.example",
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "listed origin beats wildcard",
			allowed:    []string{"*", "https://app.example"},
			method:     http.MethodGet,
			origin:     "https://app.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://app.example",
			wantCreds:  "true",
		},
		{
			name:       "preflight",
			allowed:    []string{"*"},
			method:     http.MethodOptions,
			origin:     "https://any.example",
			wantStatus: http.StatusNoContent,
			wantOrigin: "*",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://app.example"}

	assert.True(t, OriginAllowed(allowed, ""))
	assert.True(t, OriginAllowed(allowed, "https://app.example"))
	assert.False(t, OriginAllowed(allowed, "https://evil.example"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://evil.example"))
}
