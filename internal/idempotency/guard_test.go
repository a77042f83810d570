package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/kvstore"
)

type brokenStore struct {
	kvstore.Store
}

func (b *brokenStore) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("connection refused")
}

func (b *brokenStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}

func TestGetOrCreateExecutesOnce(t *testing.T) {
	g := New(kvstore.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	key := EventKey(1, "Созвон: Петровым", time.Date(2025, 1, 11, 15, 0, 0, 0, time.UTC))

	calls := 0
	compute := func(ctx context.Context) (string, error) {
		calls++
		return "event-123", nil
	}

	first, cached, err := g.GetOrCreate(ctx, key, compute)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if cached {
		t.Fatal("first call must not be cached")
	}

	second, cached, err := g.GetOrCreate(ctx, key, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !cached {
		t.Fatal("second call should hit the cache")
	}
	if first != second {
		t.Fatalf("expected identical results, got %q and %q", first, second)
	}
	if calls != 1 {
		t.Fatalf("side effect executed %d times, want 1", calls)
	}
}

func TestGetOrCreateComputeErrorNotCached(t *testing.T) {
	g := New(kvstore.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	calls := 0
	failing := func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("provider 500")
	}

	if _, _, err := g.GetOrCreate(ctx, "event:abc", failing); err == nil {
		t.Fatal("expected error from compute")
	}

	// A failed attempt leaves no record, so the retry executes again.
	result, cached, err := g.GetOrCreate(ctx, "event:abc", func(ctx context.Context) (string, error) {
		calls++
		return "event-456", nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if cached || result != "event-456" {
		t.Fatalf("unexpected retry result: %q cached=%v", result, cached)
	}
	if calls != 2 {
		t.Fatalf("expected 2 executions, got %d", calls)
	}
}

func TestGetOrCreateFailsOpenOnStoreErrors(t *testing.T) {
	g := New(&brokenStore{}, zap.NewNop())

	calls := 0
	result, cached, err := g.GetOrCreate(context.Background(), "event:abc", func(ctx context.Context) (string, error) {
		calls++
		return "event-789", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached || result != "event-789" || calls != 1 {
		t.Fatalf("expected re-execution despite store failure, got %q cached=%v calls=%d", result, cached, calls)
	}
}

func TestEventKeyStability(t *testing.T) {
	start := time.Date(2025, 1, 11, 15, 0, 0, 0, time.UTC)

	a := EventKey(1, "Созвон: Петровым", start)
	b := EventKey(1, "  созвон: петровым ", start)
	if a != b {
		t.Fatal("key must be stable under title normalization")
	}

	if EventKey(2, "Созвон: Петровым", start) == a {
		t.Fatal("different users must get different keys")
	}
	if EventKey(1, "Созвон: Петровым", start.Add(time.Hour)) == a {
		t.Fatal("different start times must get different keys")
	}
}
