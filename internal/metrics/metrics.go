package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Realtime gateway
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foodieswipe_ws_connections",
			Help: "Number of live websocket connections",
		},
	)

	WSEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodieswipe_ws_events_total",
			Help: "Inbound realtime events by type and outcome",
		},
		[]string{"event", "outcome"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodieswipe_ratelimit_rejections_total",
			Help: "Realtime events rejected by the rate limiter",
		},
		[]string{"event"},
	)

	RoomBindings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foodieswipe_room_bindings",
			Help: "Number of session room bindings held in memory",
		},
	)

	// Matching
	MatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foodieswipe_matches_total",
			Help: "Decisions committed by the swipe engine",
		},
	)

	SwipesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodieswipe_swipes_total",
			Help: "Swipes recorded by action",
		},
		[]string{"action"},
	)

	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodieswipe_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(WSEventsTotal)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(RoomBindings)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(SwipesTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
