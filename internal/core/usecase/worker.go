package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/file-intake/internal/core/domain"
	"github.com/kirillkom/file-intake/internal/core/ports"
)

const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 10 * time.Second

	journalWriteTimeout = 5 * time.Second
)

type WorkerOptions struct {
	// Zero selects DefaultMaxRetries; a negative value disables retries.
	MaxRetries int
	// Zero selects DefaultRetryBackoff; a negative value retries at once.
	RetryBackoff time.Duration
	Concurrency  int

	Logger   *slog.Logger
	Observer ports.WorkerObserver
	Journal  ports.OutcomeJournal

	// Sleep waits for the retry backoff; it must return early with the
	// context error when ctx is cancelled.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Worker drains the task queue and owns the retry policy.
type Worker struct {
	queue     ports.TaskQueue
	processor ports.TaskProcessor

	maxRetries  int
	backoff     time.Duration
	concurrency int

	logger   *slog.Logger
	observer ports.WorkerObserver
	journal  ports.OutcomeJournal
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	claims *fileClaims
}

func NewWorker(queue ports.TaskQueue, processor ports.TaskProcessor, opts WorkerOptions) *Worker {
	w := &Worker{
		queue:       queue,
		processor:   processor,
		maxRetries:  opts.MaxRetries,
		backoff:     opts.RetryBackoff,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		observer:    opts.Observer,
		journal:     opts.Journal,
		sleep:       opts.Sleep,
		now:         opts.Now,
		claims:      newFileClaims(),
	}
	switch {
	case w.maxRetries == 0:
		w.maxRetries = DefaultMaxRetries
	case w.maxRetries < 0:
		w.maxRetries = 0
	}
	switch {
	case w.backoff == 0:
		w.backoff = DefaultRetryBackoff
	case w.backoff < 0:
		w.backoff = 0
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.observer == nil {
		w.observer = noopObserver{}
	}
	if w.sleep == nil {
		w.sleep = sleepContext
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run blocks until ctx is cancelled or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker_started",
		"concurrency", w.concurrency,
		"max_retries", w.maxRetries,
		"retry_backoff_ms", w.backoff.Milliseconds(),
	)

	var wg sync.WaitGroup
	errs := make(chan error, w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			if err := w.loop(ctx, slot); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	w.logger.Info("worker_stopped", "pending", w.queue.Len())
	return <-errs
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domain.ErrQueueClosed) {
				return nil
			}
			return err
		}
		w.observer.ObserveQueueDepth(w.queue.Len())
		w.handle(ctx, slot, task)
	}
}

func (w *Worker) handle(ctx context.Context, slot int, task domain.IntakeTask) {
	// Only one slot works on a file at a time, so the duplicate check and
	// the ledger append of one attempt never interleave with another's.
	release, err := w.claims.acquire(ctx, task.FileID)
	if err != nil {
		w.logger.Warn("task_claim_cancelled", "file_id", task.FileID, "worker", slot, "error", err)
		w.writeJournal(ctx, domain.Outcome{
			FileID:       task.FileID,
			Status:       domain.OutcomeAbandoned,
			RetryCounter: task.RetryCounter,
			Error:        err.Error(),
			FinishedAt:   w.now(),
		})
		return
	}

	w.observer.StartTask()
	started := w.now()

	outcome, err := w.processor.Process(ctx, task)
	release()
	if err != nil {
		outcome = w.fail(ctx, slot, task, outcome, err)
	}
	if outcome.FinishedAt.IsZero() {
		outcome.FinishedAt = w.now()
	}

	w.observer.FinishTask(outcome, w.now().Sub(started))
	w.writeJournal(ctx, outcome)
}

// fail applies the bounded retry policy to a failed attempt.
func (w *Worker) fail(ctx context.Context, slot int, task domain.IntakeTask, outcome domain.Outcome, cause error) domain.Outcome {
	outcome.FileID = task.FileID
	outcome.RetryCounter = task.RetryCounter
	outcome.Error = cause.Error()

	if !domain.IsRetryable(cause) {
		outcome.Status = domain.OutcomeAbandoned
		w.logger.Error("task_abandoned",
			"file_id", task.FileID,
			"retry_counter", task.RetryCounter,
			"reason", "not_retryable",
			"error", cause,
		)
		return outcome
	}

	w.logger.Warn("task_failed",
		"file_id", task.FileID,
		"worker", slot,
		"retry_counter", task.RetryCounter,
		"max_retries", w.maxRetries,
		"backoff_ms", w.backoff.Milliseconds(),
		"error", cause,
	)

	if err := w.sleep(ctx, w.backoff); err != nil {
		outcome.Status = domain.OutcomeAbandoned
		w.logger.Warn("task_retry_cancelled",
			"file_id", task.FileID,
			"retry_counter", task.RetryCounter,
			"error", cause,
		)
		return outcome
	}

	if task.RetryCounter >= w.maxRetries {
		outcome.Status = domain.OutcomeAbandoned
		w.logger.Error("task_retries_exhausted",
			"severity", "critical",
			"file_id", task.FileID,
			"retry_counter", task.RetryCounter,
			"max_retries", w.maxRetries,
			"error", cause,
		)
		return outcome
	}

	next := task.Next()
	if err := w.queue.Enqueue(ctx, next); err != nil {
		outcome.Status = domain.OutcomeAbandoned
		w.logger.Error("task_requeue_failed",
			"severity", "critical",
			"file_id", task.FileID,
			"retry_counter", task.RetryCounter,
			"error", err,
		)
		return outcome
	}

	w.logger.Info("task_requeued",
		"file_id", next.FileID,
		"retry_counter", next.RetryCounter,
		"max_retries", w.maxRetries,
	)
	outcome.Status = domain.OutcomeRetrying
	return outcome
}

func (w *Worker) writeJournal(ctx context.Context, outcome domain.Outcome) {
	if w.journal == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := w.journal.RecordOutcome(writeCtx, outcome); err != nil {
		w.logger.Warn("journal_write_failed", "file_id", outcome.FileID, "status", string(outcome.Status), "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fileClaims serializes work per file id across worker slots.
type fileClaims struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newFileClaims() *fileClaims {
	return &fileClaims{held: make(map[string]chan struct{})}
}

// acquire blocks while another slot holds fileID.
func (c *fileClaims) acquire(ctx context.Context, fileID string) (func(), error) {
	for {
		c.mu.Lock()
		busy, ok := c.held[fileID]
		if !ok {
			done := make(chan struct{})
			c.held[fileID] = done
			c.mu.Unlock()
			return func() {
				c.mu.Lock()
				delete(c.held, fileID)
				c.mu.Unlock()
				close(done)
			}, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-busy:
		}
	}
}

type noopObserver struct{}

func (noopObserver) StartTask() {}

func (noopObserver) FinishTask(domain.Outcome, time.Duration) {}

func (noopObserver) ObserveQueueDepth(int) {}
