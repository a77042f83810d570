package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/calendar"
	"github.com/xaenox/planner-bot/internal/idempotency"
	"github.com/xaenox/planner-bot/internal/models"
)

var (
	errNoStartTime   = errors.New("event has no start time")
	errWorkerStopped = errors.New("worker stopped")
	errQueueFull     = errors.New("job queue full")
)

// EventCreator performs the external side effect of creating an event.
// Satisfied by calendar.Client.
type EventCreator interface {
	CreateEvent(ctx context.Context, event calendar.Event) (string, error)
}

// CreateEventRequest asks the worker to create a calendar event from parsed
// content. OnDone is invoked exactly once with the final outcome, after all
// retries are spent.
type CreateEventRequest struct {
	UserID     int64
	Content    models.ParsedContent
	CalendarID string
	Conference string
	OnDone     func(eventID string, err error)
}

type job struct {
	id       string
	name     string
	attempts int
	run      func(ctx context.Context) error
	// fail is invoked once when the job exhausts its retries.
	fail func(err error)
}

// Worker runs background jobs with bounded retries. Event creation goes
// through the idempotency guard so a redelivered or re-enqueued job does not
// create a duplicate.
type Worker struct {
	jobs       chan job
	creator    EventCreator
	guard      *idempotency.Guard
	cron       *cron.Cron
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	stopped bool

	quit chan struct{}
	done chan struct{}
}

type Config struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
	}
}

func New(creator EventCreator, guard *idempotency.Guard, cfg Config, logger *zap.Logger) *Worker {
	return &Worker{
		jobs:       make(chan job, cfg.QueueSize),
		creator:    creator,
		guard:      guard,
		cron:       cron.New(),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the job loop and the cron scheduler.
func (w *Worker) Start(ctx context.Context) {
	w.cron.Start()
	go w.loop(ctx)
}

// Stop shuts down the scheduler and the job loop. Jobs still queued, and
// retry or delayed jobs whose timers fire afterwards, are failed rather
// than silently dropped so every OnDone callback still runs. Safe to call
// more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.cron.Stop()
	close(w.quit)
	<-w.done

	for {
		select {
		case j := <-w.jobs:
			w.dropJob(j, errWorkerStopped)
		default:
			return
		}
	}
}

// RegisterHourlySweep schedules fn to run every hour, used for reminder
// sweeps over pending items.
func (w *Worker) RegisterHourlySweep(fn func()) error {
	_, err := w.cron.AddFunc("@hourly", fn)
	return err
}

// QueueDepth reports the number of jobs waiting in the queue.
func (w *Worker) QueueDepth() int {
	return len(w.jobs)
}

// EnqueueCreateEvent schedules event creation. Returns the job id.
func (w *Worker) EnqueueCreateEvent(req CreateEventRequest) string {
	j := job{
		id:   uuid.New().String(),
		name: "create_event",
		run: func(ctx context.Context) error {
			return w.createEvent(ctx, req)
		},
	}
	if req.OnDone != nil {
		j.fail = func(err error) {
			req.OnDone("", err)
		}
	}
	w.enqueue(j)
	return j.id
}

// EnqueueFunc schedules an arbitrary job with the worker's retry policy.
func (w *Worker) EnqueueFunc(name string, fn func(ctx context.Context) error) string {
	j := job{
		id:   uuid.New().String(),
		name: name,
		run:  fn,
	}
	w.enqueue(j)
	return j.id
}

// EnqueueDelayed schedules a job to run after delay, used to retry
// transcription once the quota window has moved on.
func (w *Worker) EnqueueDelayed(name string, delay time.Duration, fn func(ctx context.Context) error) string {
	id := uuid.New().String()
	time.AfterFunc(delay, func() {
		w.enqueue(job{id: id, name: name, run: fn})
	})
	return id
}

func (w *Worker) enqueue(j job) {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		w.dropJob(j, errWorkerStopped)
		return
	}

	select {
	case w.jobs <- j:
	default:
		w.dropJob(j, errQueueFull)
	}
}

func (w *Worker) dropJob(j job, err error) {
	w.logger.Error("Dropping job",
		zap.Error(err),
		zap.String("job_id", j.id),
		zap.String("job", j.name))
	if j.fail != nil {
		j.fail(err)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			w.execute(ctx, j)
		}
	}
}

func (w *Worker) execute(ctx context.Context, j job) {
	err := j.run(ctx)
	if err == nil {
		return
	}

	j.attempts++
	if j.attempts > w.maxRetries {
		w.logger.Error("Job failed permanently",
			zap.Error(err),
			zap.String("job_id", j.id),
			zap.String("job", j.name),
			zap.Int("attempts", j.attempts))
		if j.fail != nil {
			j.fail(err)
		}
		return
	}

	w.logger.Warn("Job failed, scheduling retry",
		zap.Error(err),
		zap.String("job_id", j.id),
		zap.String("job", j.name),
		zap.Int("attempt", j.attempts))

	time.AfterFunc(w.retryDelay, func() {
		w.enqueue(j)
	})
}

func (w *Worker) createEvent(ctx context.Context, req CreateEventRequest) error {
	content := req.Content
	if content.StartDatetime == nil {
		// Guarded by the caller; nothing sensible to create without a start.
		if req.OnDone != nil {
			req.OnDone("", errNoStartTime)
		}
		return nil
	}

	start := *content.StartDatetime
	end := start.Add(time.Duration(content.DurationMinutes) * time.Minute)
	if content.EndDatetime != nil {
		end = *content.EndDatetime
	}

	key := idempotency.EventKey(req.UserID, content.Title, start)
	eventID, cached, err := w.guard.GetOrCreate(ctx, key, func(ctx context.Context) (string, error) {
		return w.creator.CreateEvent(ctx, calendar.Event{
			UserID:       req.UserID,
			CalendarID:   req.CalendarID,
			Title:        content.Title,
			Start:        start,
			End:          end,
			Location:     content.Location,
			Participants: content.Participants,
			Description:  content.NoteContent,
			Conference:   req.Conference,
		})
	})
	if err != nil {
		return err
	}

	if cached {
		w.logger.Info("Duplicate event creation suppressed",
			zap.Int64("user_id", req.UserID),
			zap.String("event_id", eventID))
	}

	if req.OnDone != nil {
		req.OnDone(eventID, nil)
	}
	return nil
}
