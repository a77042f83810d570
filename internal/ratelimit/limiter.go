package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/kvstore"
)

const keyPrefix = "rate:"

// Limiter is a fixed-window rate limiter over the shared key-value store.
// The check is a single atomic increment, so an over-limit request is still
// counted even though it is reported as not allowed.
type Limiter struct {
	store  kvstore.Store
	logger *zap.Logger
}

func New(store kvstore.Store, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Allow increments the counter for key and reports whether the request fits
// within maxRequests per window. On store errors it fails open: the user is
// never blocked because the limiter backend is down.
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, int) {
	count, err := l.store.IncrWithExpiry(ctx, keyPrefix+key, window)
	if err != nil {
		l.logger.Warn("Rate limit check failed, allowing request",
			zap.Error(err),
			zap.String("key", key))
		return true, maxRequests
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= int64(maxRequests), remaining
}
