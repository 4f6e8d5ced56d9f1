package worker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eduxora/stageflow/internal/taskqueue"
)

type recordingRefresher struct {
	mu    sync.Mutex
	calls []string
	fail  int // number of leading calls that fail
}

func (r *recordingRefresher) Refresh(ctx context.Context, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, requestID)
	if len(r.calls) <= r.fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (r *recordingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type queueFactory func(t *testing.T) taskqueue.Queue

func inMemoryQueue(t *testing.T) taskqueue.Queue {
	t.Helper()
	return taskqueue.NewInMemoryQueue(10)
}

func sqliteQueue(t *testing.T) taskqueue.Queue {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}
	return q
}

func TestWorker_ProcessesRefreshTasks(t *testing.T) {
	factories := map[string]queueFactory{
		"in-memory": inMemoryQueue,
		"sqlite":    sqliteQueue,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref := &recordingRefresher{}
			w := New(ref, factory(t))

			if err := w.EnqueueRefresh(ctx, "42"); err != nil {
				t.Fatalf("EnqueueRefresh failed: %v", err)
			}

			processed, err := w.ProcessOne(ctx)
			if err != nil {
				t.Fatalf("ProcessOne failed: %v", err)
			}
			if !processed {
				t.Fatalf("expected a task to be processed")
			}
			if ref.count() != 1 || ref.calls[0] != "42" {
				t.Fatalf("expected one refresh of 42, got %v", ref.calls)
			}
		})
	}
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	queue := sqliteQueue(t)
	ref := &recordingRefresher{fail: 2}
	backoff := 30 * time.Millisecond
	w := NewWithConfig(ref, queue, Config{MaxAttempts: 3, Backoff: backoff})

	if err := w.EnqueueRefresh(ctx, "42"); err != nil {
		t.Fatalf("EnqueueRefresh failed: %v", err)
	}

	start := time.Now()
	for i := 0; i < 2; i++ {
		processed, err := w.ProcessOne(ctx)
		if !processed || err == nil {
			t.Fatalf("attempt %d: expected processed failure, got %v %v", i+1, processed, err)
		}
	}
	processed, err := w.ProcessOne(ctx)
	if !processed || err != nil {
		t.Fatalf("third attempt: expected success, got %v %v", processed, err)
	}

	// Retries wait backoff and then 2*backoff.
	if elapsed := time.Since(start); elapsed < 2*backoff {
		t.Fatalf("expected at least %v of backoff, got %v", 2*backoff, elapsed)
	}
	if ref.count() != 3 {
		t.Fatalf("expected 3 refresh calls, got %d", ref.count())
	}
	if queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", queue.Len())
	}
}

func TestWorker_PendingRetryDoesNotBlockDueRefresh(t *testing.T) {
	for name, factory := range map[string]queueFactory{"in-memory": inMemoryQueue, "sqlite": sqliteQueue} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			queue := factory(t)
			ref := &recordingRefresher{fail: 1}
			w := NewWithConfig(ref, queue, Config{MaxAttempts: 2, Backoff: time.Hour})

			if err := w.EnqueueRefresh(ctx, "failing"); err != nil {
				t.Fatalf("EnqueueRefresh failed: %v", err)
			}
			if processed, err := w.ProcessOne(ctx); !processed || err == nil {
				t.Fatalf("expected processed failure, got %v %v", processed, err)
			}

			if err := w.EnqueueRefresh(ctx, "due"); err != nil {
				t.Fatalf("EnqueueRefresh failed: %v", err)
			}
			if processed, err := w.ProcessOne(ctx); !processed || err != nil {
				t.Fatalf("expected the due refresh to run, got %v %v", processed, err)
			}

			ref.mu.Lock()
			last := ref.calls[len(ref.calls)-1]
			ref.mu.Unlock()
			if last != "due" {
				t.Fatalf("expected due refresh to overtake the retry, got %q", last)
			}
			if queue.Len() != 1 {
				t.Fatalf("expected the retry to stay queued, got %d", queue.Len())
			}
		})
	}
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	queue := inMemoryQueue(t)
	ref := &recordingRefresher{fail: 10}
	w := NewWithConfig(ref, queue, Config{MaxAttempts: 2})

	if err := w.EnqueueRefresh(ctx, "42"); err != nil {
		t.Fatalf("EnqueueRefresh failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(ctx); err == nil {
			t.Fatalf("attempt %d: expected failure", i+1)
		}
	}
	if queue.Len() != 0 {
		t.Fatalf("expected task to be dropped after max attempts, Len=%d", queue.Len())
	}
}

func TestWorker_UnknownTaskType(t *testing.T) {
	ctx := context.Background()
	queue := inMemoryQueue(t)
	w := New(&recordingRefresher{}, queue)

	if err := queue.Enqueue(ctx, taskqueue.Task{ID: "x", Type: "reindex"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	processed, err := w.ProcessOne(ctx)
	if !processed || err == nil {
		t.Fatalf("expected processed error for unknown type, got %v %v", processed, err)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := inMemoryQueue(t)
	ref := &recordingRefresher{}
	w := New(ref, queue)

	for _, id := range []string{"1", "2"} {
		if err := w.EnqueueRefresh(ctx, id); err != nil {
			t.Fatalf("EnqueueRefresh failed: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ref.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("worker did not drain the queue")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
