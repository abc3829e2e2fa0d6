// Package breaker implements the TTL-based provider circuit breaker and the
// counter stores behind it.
package breaker

import (
	"context"
	"time"
)

// TTLStore is a shared per-key counter whose entries expire after a TTL
type TTLStore interface {
	// Get returns the current count and whether the key exists
	Get(ctx context.Context, key string) (int64, bool, error)

	// Increment adds one to the counter and refreshes its TTL atomically
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes the key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}
