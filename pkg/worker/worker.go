package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduxora/stageflow/internal/taskqueue"
)

// Refresher refetches a request and overwrites its stored snapshot.
// *lifecycle.Lifecycle implements it.
type Refresher interface {
	Refresh(ctx context.Context, requestID string) error
}

// Config controls retry behavior of a Worker.
type Config struct {
	// MaxAttempts is the total number of executions of a task, including
	// the first. Values below 1 mean a single attempt.
	MaxAttempts int

	// Backoff is the delay before the first retry. It doubles on every
	// further attempt.
	Backoff time.Duration

	Logger *slog.Logger
}

// Worker pulls refresh tasks from a Queue and runs them against a Refresher.
type Worker struct {
	refresher Refresher
	queue     taskqueue.Queue
	cfg       Config
}

// New creates a Worker that runs every task once.
func New(refresher Refresher, queue taskqueue.Queue) *Worker {
	return NewWithConfig(refresher, queue, Config{})
}

// NewWithConfig creates a Worker with a retry policy.
func NewWithConfig(refresher Refresher, queue taskqueue.Queue, cfg Config) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{
		refresher: refresher,
		queue:     queue,
		cfg:       cfg,
	}
}

// EnqueueRefresh enqueues a refresh of requestID. It does NOT run the
// refresh itself; that is done by ProcessOne.
func (w *Worker) EnqueueRefresh(ctx context.Context, requestID string) error {
	return w.queue.Enqueue(ctx, taskqueue.NewRefreshTask(requestID))
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false: no task processed (ctx ended or the queue failed)
//   - processed == true: a task was processed; err indicates whether the handler succeeded.
//
// A failed task with attempts left is re-enqueued with exponential backoff
// before ProcessOne returns the handler error.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	var runErr error
	switch task.Type {
	case taskqueue.TaskTypeRefresh:
		runErr = w.refresher.Refresh(ctx, task.RequestID)
	default:
		// Unknown task type; mark as processed but return an error so this isn't silently ignored.
		return true, errors.New("unknown task type: " + string(task.Type))
	}
	if runErr == nil {
		return true, nil
	}

	if task.Attempts+1 < w.cfg.MaxAttempts {
		retry := *task
		retry.Attempts++
		retry.NotBefore = time.Now().Add(w.backoff(retry.Attempts))
		if err := w.queue.Enqueue(ctx, retry); err != nil {
			return true, errors.Join(runErr, fmt.Errorf("re-enqueue task %s: %w", task.ID, err))
		}
	}
	return true, runErr
}

// Run processes tasks until ctx ends. Handler failures are logged and do
// not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		processed, err := w.ProcessOne(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil {
			continue
		}
		if !processed {
			return err
		}
		w.cfg.Logger.WarnContext(ctx, "refresh task failed", "error", err)
	}
}

func (w *Worker) backoff(attempt int) time.Duration {
	if w.cfg.Backoff <= 0 || attempt < 1 {
		return 0
	}
	return w.cfg.Backoff << (attempt - 1)
}
