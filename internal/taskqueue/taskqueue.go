package taskqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	// TaskTypeRefresh refetches a request and overwrites its snapshot.
	TaskTypeRefresh TaskType = "refresh-request"
)

// Task represents a unit of work for the worker.
type Task struct {
	ID        string
	Type      TaskType
	RequestID string

	// Attempts counts previous failed executions of this task.
	Attempts int

	EnqueuedAt time.Time

	// NotBefore is the earliest time this task should be eligible
	// for processing. Zero value means "immediately" (i.e., at enqueue time).
	NotBefore time.Time
}

// NewRefreshTask returns a refresh task for requestID with a fresh id.
func NewRefreshTask(requestID string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       TaskTypeRefresh,
		RequestID:  requestID,
		EnqueuedAt: time.Now(),
	}
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
