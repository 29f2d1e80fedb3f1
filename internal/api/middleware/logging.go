package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dom/foodieswipe/internal/logger"
	"github.com/dom/foodieswipe/internal/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type loggerKey struct{}

// RequestLogger writes one structured access log per request and attaches a
// request-scoped logger to the context. Place it after chi's RequestID.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		l := logger.WithComponent("http").With().
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("remote_ip", r.RemoteAddr).
			Logger()
		ctx := context.WithValue(r.Context(), loggerKey{}, &l)

		next.ServeHTTP(ww, r.WithContext(ctx))

		path := r.URL.Path
		if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()

		ev := l.With().
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", ww.BytesWritten()).
			Logger()

		switch {
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	})
}

// LoggerFrom returns the request-scoped logger, or the global one outside a
// request.
func LoggerFrom(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &logger.Logger
}
