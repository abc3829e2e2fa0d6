package breaker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultThreshold = 3
	DefaultTTL       = 5 * time.Minute
	DefaultKeyPrefix = "ai_provider_errors:"
)

// Options tunes the breaker; zero values fall back to the defaults
type Options struct {
	Threshold int
	TTL       time.Duration
	KeyPrefix string
}

// Breaker counts consecutive provider failures in a TTLStore.
// A provider is open while its count is at or above the threshold; the count
// expires TTL after the last failure and any success deletes it. There is no
// half-open probing.
type Breaker struct {
	store     TTLStore
	threshold int64
	ttl       time.Duration
	prefix    string
	logger    *zap.Logger
}

// New creates a breaker over store
func New(store TTLStore, opts Options, logger *zap.Logger) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	return &Breaker{
		store:     store,
		threshold: int64(opts.Threshold),
		ttl:       opts.TTL,
		prefix:    opts.KeyPrefix,
		logger:    logger,
	}
}

// Key returns the store key for a provider
func (b *Breaker) Key(provider string) string {
	return b.prefix + provider
}

// RecordFailure increments the provider's failure count
func (b *Breaker) RecordFailure(ctx context.Context, provider string) {
	count, err := b.store.Increment(ctx, b.Key(provider), b.ttl)
	if err != nil {
		b.logger.Error("breaker store increment failed",
			zap.String("provider", provider),
			zap.Error(err))
		return
	}

	if count == b.threshold {
		b.logger.Warn("circuit opened",
			zap.String("provider", provider),
			zap.Int64("failures", count),
			zap.Duration("ttl", b.ttl))
	}
}

// RecordSuccess closes the provider's circuit
func (b *Breaker) RecordSuccess(ctx context.Context, provider string) {
	if err := b.store.Delete(ctx, b.Key(provider)); err != nil {
		b.logger.Error("breaker store delete failed",
			zap.String("provider", provider),
			zap.Error(err))
	}
}

// IsOpen reports whether the provider must be skipped.
// Store errors report closed so a broken store never blocks dispatch.
func (b *Breaker) IsOpen(ctx context.Context, provider string) bool {
	return b.Failures(ctx, provider) >= b.threshold
}

// Failures returns the current consecutive-failure count, 0 when closed or unknown
func (b *Breaker) Failures(ctx context.Context, provider string) int64 {
	count, ok, err := b.store.Get(ctx, b.Key(provider))
	if err != nil {
		b.logger.Error("breaker store read failed",
			zap.String("provider", provider),
			zap.Error(err))
		return 0
	}
	if !ok {
		return 0
	}
	return count
}
