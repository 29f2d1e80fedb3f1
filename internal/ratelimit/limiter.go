// Package ratelimit implements the per-user, per-event fixed-window limiter
// that gates every realtime event.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Policy allows Max events per Window.
type Policy struct {
	Max    int
	Window time.Duration
}

const DefaultEventType = "default"

// DefaultPolicies are the per-event limits used when no override is configured.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"couple_swipe":    {Max: 100, Window: time.Minute},
		"swipe":           {Max: 100, Window: time.Minute},
		"couple_like":     {Max: 50, Window: time.Minute},
		"like":            {Max: 50, Window: time.Minute},
		"message":         {Max: 30, Window: time.Minute},
		"session_join":    {Max: 10, Window: time.Minute},
		"session_leave":   {Max: 10, Window: time.Minute},
		"decision_accept": {Max: 10, Window: time.Minute},
		"authenticate":    {Max: 5, Window: time.Minute},
		DefaultEventType:  {Max: 20, Window: time.Minute},
	}
}

// Decision is the outcome of CheckAndConsume.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Status is a read-only view of a counter.
type Status struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetTime"`
	Limited   bool      `json:"limited"`
}

type Stats struct {
	TrackedKeys int `json:"trackedKeys"`
	LimitedKeys int `json:"limitedKeys"`
}

type counter struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

// Limiter is safe for concurrent use. It never performs I/O.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	counters map[string]*counter
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Limiter) {
		l.log = log
	}
}

// New builds a limiter from policies. A missing "default" policy is filled in
// from DefaultPolicies.
func New(policies map[string]Policy, opts ...Option) *Limiter {
	merged := make(map[string]Policy, len(policies)+1)
	for k, p := range policies {
		merged[k] = p
	}
	if _, ok := merged[DefaultEventType]; !ok {
		merged[DefaultEventType] = DefaultPolicies()[DefaultEventType]
	}

	l := &Limiter{
		policies: merged,
		counters: make(map[string]*counter),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bucket maps an event type to the policy it is counted under. Types without
// a policy of their own share the default bucket.
func (l *Limiter) Bucket(eventType string) string {
	if _, ok := l.policies[eventType]; ok {
		return eventType
	}
	return DefaultEventType
}

func (l *Limiter) policy(bucket string) Policy {
	return l.policies[bucket]
}

func key(userID, bucket string) string {
	return userID + ":" + bucket
}

// CheckAndConsume counts one event for (userID, eventType) and reports whether
// it is within the current window's budget.
func (l *Limiter) CheckAndConsume(userID, eventType string) Decision {
	bucket := l.Bucket(eventType)
	p := l.policy(bucket)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(userID, bucket)
	c, ok := l.counters[k]
	if !ok || now.After(c.resetAt) {
		c = &counter{resetAt: now.Add(p.Window), window: p.Window}
		l.counters[k] = c
	}

	if c.count >= p.Max {
		l.log.Warn().
			Str("user_id", userID).
			Str("event", eventType).
			Int("max", p.Max).
			Msg("rate limit exceeded")
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    c.resetAt,
			RetryAfter: c.resetAt.Sub(now),
		}
	}

	c.count++
	return Decision{
		Allowed:   true,
		Remaining: p.Max - c.count,
		ResetAt:   c.resetAt,
	}
}

// Status reports the counter state without consuming from it.
func (l *Limiter) Status(userID, eventType string) Status {
	bucket := l.Bucket(eventType)
	p := l.policy(bucket)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key(userID, bucket)]
	if !ok || now.After(c.resetAt) {
		return Status{Remaining: p.Max, ResetAt: now.Add(p.Window)}
	}

	remaining := p.Max - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Remaining: remaining,
		ResetAt:   c.resetAt,
		Limited:   remaining == 0,
	}
}

// Sweep drops counters whose window closed more than one window ago and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, c := range l.counters {
		if now.After(c.resetAt.Add(c.window)) {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debug().Int("removed", n).Msg("swept rate limit counters")
			}
		}
	}
}

// ResetUser forgets every counter of userID.
func (l *Limiter) ResetUser(userID string) {
	prefix := userID + ":"

	l.mu.Lock()
	defer l.mu.Unlock()

	for k := range l.counters {
		if strings.HasPrefix(k, prefix) {
			delete(l.counters, k)
		}
	}
}

func (l *Limiter) Stats() Stats {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{TrackedKeys: len(l.counters)}
	for k, c := range l.counters {
		bucket := k[strings.LastIndex(k, ":")+1:]
		if !now.After(c.resetAt) && c.count >= l.policy(bucket).Max {
			stats.LimitedKeys++
		}
	}
	return stats
}
