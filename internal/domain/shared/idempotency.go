package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of work that was already done, such as
// webhook deliveries, for a limited time
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if key has been recorded and not yet expired
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store
	Close() error
}
