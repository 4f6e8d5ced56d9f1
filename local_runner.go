package stageflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/internal/persistence"
	"github.com/eduxora/stageflow/internal/taskqueue"
	"github.com/eduxora/stageflow/pkg/worker"
)

// LocalRunner bundles an in-memory Lifecycle, an in-memory refresh queue,
// and a Worker for development and debugging.
//
// Typical usage:
//
//	runner, _ := stageflow.NewLocalRunner(client)
//	_ = runner.StartWorkers(ctx, 2)
//	defer runner.Stop()
//
//	// Submissions enqueue their refresh; workers apply it.
//	err := runner.Lifecycle.Submit(ctx, stageflow.Completion{...})
type LocalRunner struct {
	// Lifecycle is backed by in-memory snapshot and event stores.
	Lifecycle *Lifecycle

	// Queue is the in-memory task queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes refresh tasks from Queue using Lifecycle.
	Worker *worker.Worker

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner against r with a default worker
// config.
func NewLocalRunner(r RemoteAPI) (*LocalRunner, error) {
	q := taskqueue.NewInMemoryQueue(1024)
	lc, err := lifecycle.New(lifecycle.Config{
		Remote:      r,
		Persistence: persistence.NewInMemory(),
		Queue:       q,
	})
	if err != nil {
		return nil, err
	}

	return &LocalRunner{
		Lifecycle: lc,
		Queue:     q,
		Worker:    worker.New(lc, q),
	}, nil
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("stageflow: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				_, err := r.Worker.ProcessOne(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					// A single failed refresh must not kill the loop.
					slog.WarnContext(ctx, "stageflow: local runner worker error", "error", err)
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RefreshAsync enqueues a refresh of requestID for the workers.
func (r *LocalRunner) RefreshAsync(ctx context.Context, requestID string) error {
	return r.Worker.EnqueueRefresh(ctx, requestID)
}
