package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the shared key-value store behind rate-limit counters, the
// idempotency cache and pending events. Every operation is atomic per key;
// nothing here requires cross-key transactions.
type Store interface {
	// IncrWithExpiry atomically increments the counter at key and returns the
	// new value. The expiry is set only on first touch (value == 1), so the
	// counter expires window seconds after its first increment.
	IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}
