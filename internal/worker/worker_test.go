package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/calendar"
	"github.com/xaenox/planner-bot/internal/idempotency"
	"github.com/xaenox/planner-bot/internal/kvstore"
	"github.com/xaenox/planner-bot/internal/models"
)

type fakeCreator struct {
	mu       sync.Mutex
	calls    int
	failures int
	lastID   string
}

func (f *fakeCreator) CreateEvent(ctx context.Context, event calendar.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", errors.New("temporarily unavailable")
	}
	f.lastID = "evt-1"
	return f.lastID, nil
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testRequest(done chan string) CreateEventRequest {
	start := time.Date(2025, 1, 11, 15, 0, 0, 0, time.UTC)
	return CreateEventRequest{
		UserID: 1,
		Content: models.ParsedContent{
			ContentType:     models.ContentEvent,
			Title:           "Созвон: Петровым",
			StartDatetime:   &start,
			DurationMinutes: 60,
			Success:         true,
		},
		OnDone: func(eventID string, err error) {
			if err != nil {
				done <- "error: " + err.Error()
				return
			}
			done <- eventID
		},
	}
}

func startWorker(t *testing.T, creator EventCreator, cfg Config) *Worker {
	t.Helper()

	guard := idempotency.New(kvstore.NewMemoryStore(), zap.NewNop())
	w := New(creator, guard, cfg, zap.NewNop())
	w.Start(context.Background())
	t.Cleanup(w.Stop)
	return w
}

func waitFor(t *testing.T, done chan string) string {
	t.Helper()
	select {
	case v := <-done:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job")
		return ""
	}
}

func TestDuplicateEnqueueCreatesOnce(t *testing.T) {
	creator := &fakeCreator{}
	w := startWorker(t, creator, DefaultConfig())

	done := make(chan string, 2)
	w.EnqueueCreateEvent(testRequest(done))
	first := waitFor(t, done)

	w.EnqueueCreateEvent(testRequest(done))
	second := waitFor(t, done)

	if creator.callCount() != 1 {
		t.Fatalf("expected one creation call, got %d", creator.callCount())
	}
	if first != "evt-1" || second != "evt-1" {
		t.Fatalf("expected cached event id both times, got %q and %q", first, second)
	}
}

func TestRetryOnTransientFailure(t *testing.T) {
	creator := &fakeCreator{failures: 2}
	cfg := DefaultConfig()
	cfg.RetryDelay = 10 * time.Millisecond
	w := startWorker(t, creator, cfg)

	done := make(chan string, 1)
	w.EnqueueCreateEvent(testRequest(done))

	if got := waitFor(t, done); got != "evt-1" {
		t.Fatalf("expected success after retries, got %q", got)
	}
	if creator.callCount() != 3 {
		t.Fatalf("expected 3 attempts, got %d", creator.callCount())
	}
}

func TestPermanentFailureReportsError(t *testing.T) {
	creator := &fakeCreator{failures: 100}
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	cfg.RetryDelay = 10 * time.Millisecond
	w := startWorker(t, creator, cfg)

	done := make(chan string, 1)
	w.EnqueueCreateEvent(testRequest(done))

	got := waitFor(t, done)
	if got == "evt-1" {
		t.Fatal("expected a failure report")
	}
	if creator.callCount() != 2 {
		t.Fatalf("expected 2 attempts with MaxRetries=1, got %d", creator.callCount())
	}
}

func TestEnqueueAfterStopReportsFailure(t *testing.T) {
	creator := &fakeCreator{}
	guard := idempotency.New(kvstore.NewMemoryStore(), zap.NewNop())
	w := New(creator, guard, DefaultConfig(), zap.NewNop())
	w.Start(context.Background())
	w.Stop()

	done := make(chan string, 1)
	w.EnqueueCreateEvent(testRequest(done))

	got := waitFor(t, done)
	if !strings.HasPrefix(got, "error:") {
		t.Fatalf("expected a failure report after stop, got %q", got)
	}
	if creator.callCount() != 0 {
		t.Fatalf("stopped worker must not create events, got %d calls", creator.callCount())
	}
}

func TestRetryTimerAfterStopStillReportsOutcome(t *testing.T) {
	creator := &fakeCreator{failures: 100}
	cfg := DefaultConfig()
	cfg.RetryDelay = 50 * time.Millisecond

	guard := idempotency.New(kvstore.NewMemoryStore(), zap.NewNop())
	w := New(creator, guard, cfg, zap.NewNop())
	w.Start(context.Background())

	done := make(chan string, 1)
	w.EnqueueCreateEvent(testRequest(done))

	// Wait for the first attempt to fail, then stop before its retry
	// timer fires. The late timer must still resolve OnDone.
	deadline := time.Now().Add(5 * time.Second)
	for creator.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first attempt")
		}
		time.Sleep(time.Millisecond)
	}
	w.Stop()

	got := waitFor(t, done)
	if !strings.HasPrefix(got, "error:") {
		t.Fatalf("expected a failure report for the dropped retry, got %q", got)
	}
}

func TestEnqueueDelayedRunsAfterDelay(t *testing.T) {
	w := startWorker(t, &fakeCreator{}, DefaultConfig())

	done := make(chan string, 1)
	enqueued := time.Now()
	w.EnqueueDelayed("transcribe_retry", 20*time.Millisecond, func(ctx context.Context) error {
		done <- time.Since(enqueued).String()
		return nil
	})

	waitFor(t, done)
}
