package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSetGetDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetWithTTL(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Fatalf("get: %q, %v", got, err)
	}

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreCounterExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		n, err := s.IncrWithExpiry(ctx, "rate:test", time.Hour)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if n != int64(i) {
			t.Fatalf("expected counter %d, got %d", i, n)
		}
	}

	// Window is anchored to the first increment: 30 minutes in, the counter
	// keeps growing instead of resetting.
	now = base.Add(30 * time.Minute)
	if n, _ := s.IncrWithExpiry(ctx, "rate:test", time.Hour); n != 4 {
		t.Fatalf("expected counter 4 inside window, got %d", n)
	}

	// Past the window the counter starts over.
	now = base.Add(time.Hour + time.Second)
	if n, _ := s.IncrWithExpiry(ctx, "rate:test", time.Hour); n != 1 {
		t.Fatalf("expected counter reset after window, got %d", n)
	}
}

func TestMemoryStoreValueExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	if err := s.SetWithTTL(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = base.Add(59 * time.Minute)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("value expired too early: %v", err)
	}

	now = base.Add(61 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}
