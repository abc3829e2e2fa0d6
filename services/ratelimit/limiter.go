// Package ratelimit throttles AI requests per user with fixed windows kept
// in the same TTL counter store the circuit breaker uses.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/services/breaker"
	"go.uber.org/zap"
)

// Options configures the per-user limits. A limit of zero or less disables
// throttling for that tier.
type Options struct {
	FreeLimit    int
	PremiumLimit int
	Window       time.Duration
	KeyPrefix    string
}

// Result describes one admission decision
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter is the wait until the window closes, on the limiter's clock
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds
func (r Result) RetryAfterSeconds() int {
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// Limiter counts requests per user in windows aligned to Window.
// Each window gets its own key, so the store's TTL refresh on increment
// never stretches a window.
type Limiter struct {
	store  breaker.TTLStore
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// New creates a limiter on the wall clock
func New(store breaker.TTLStore, opts Options, logger *zap.Logger) *Limiter {
	return NewWithClock(store, opts, time.Now, logger)
}

// NewWithClock creates a limiter reading time from now
func NewWithClock(store breaker.TTLStore, opts Options, now func() time.Time, logger *zap.Logger) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "ai_rate:"
	}
	return &Limiter{
		store:  store,
		opts:   opts,
		now:    now,
		logger: logger,
	}
}

// Allow records one request for the user and reports whether it fits the
// window. Store failures admit the request.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID, premium bool) Result {
	limit := l.opts.FreeLimit
	if premium {
		limit = l.opts.PremiumLimit
	}

	now := l.now()
	start := now.Truncate(l.opts.Window)
	reset := start.Add(l.opts.Window)
	result := Result{Allowed: true, Limit: limit, ResetAt: reset, RetryAfter: reset.Sub(now)}
	if limit <= 0 {
		return result
	}

	count, err := l.store.Increment(ctx, l.key(userID, start), l.opts.Window)
	if err != nil {
		l.logger.Error("rate limit store write failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		result.Remaining = limit
		return result
	}

	if count > int64(limit) {
		result.Allowed = false
		l.logger.Info("ai rate limit exceeded",
			zap.String("user_id", userID.String()),
			zap.Int("limit", limit),
			zap.Time("reset_at", result.ResetAt))
		return result
	}

	result.Remaining = limit - int(count)
	return result
}

func (l *Limiter) key(userID uuid.UUID, windowStart time.Time) string {
	return fmt.Sprintf("%s%s:%d", l.opts.KeyPrefix, userID, windowStart.Unix())
}
