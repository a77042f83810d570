package idempotency

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/kvstore"
)

// DefaultTTL is the retry window within which a repeated side-effecting
// action returns the cached result instead of executing again.
const DefaultTTL = time.Hour

// Guard suppresses duplicate side effects on redelivered background jobs.
// The job system may redeliver after a timeout or crash; keying by the
// logical action rather than the message makes the retry safe.
type Guard struct {
	store  kvstore.Store
	ttl    time.Duration
	logger *zap.Logger
}

func New(store kvstore.Store, logger *zap.Logger) *Guard {
	return &Guard{
		store:  store,
		ttl:    DefaultTTL,
		logger: logger,
	}
}

// EventKey derives a stable idempotency key for event creation from the
// user, normalized title and start time.
func EventKey(userID int64, title string, start time.Time) string {
	payload := fmt.Sprintf("%d|%s|%s",
		userID,
		strings.ToLower(strings.TrimSpace(title)),
		start.UTC().Format(time.RFC3339))
	sum := md5.Sum([]byte(payload))
	return "event:" + hex.EncodeToString(sum[:])
}

// GetOrCreate returns the cached result for key if one exists within the
// TTL; otherwise it runs compute, stores the result and returns it. The
// second return reports whether the result came from cache.
//
// If the store is unreachable the guard fails by re-executing: a possible
// duplicate side effect is preferred over refusing the action.
func (g *Guard) GetOrCreate(ctx context.Context, key string, compute func(context.Context) (string, error)) (string, bool, error) {
	cached, err := g.store.Get(ctx, key)
	if err == nil {
		g.logger.Info("Action already performed, returning cached result",
			zap.String("key", key))
		return cached, true, nil
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		g.logger.Warn("Idempotency store unreachable, re-executing action",
			zap.Error(err),
			zap.String("key", key))
	}

	result, err := compute(ctx)
	if err != nil {
		return "", false, err
	}

	if err := g.store.SetWithTTL(ctx, key, result, g.ttl); err != nil {
		g.logger.Warn("Failed to store idempotency record",
			zap.Error(err),
			zap.String("key", key))
	}

	return result, false, nil
}
