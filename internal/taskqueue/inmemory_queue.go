package taskqueue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryQueue is a bounded Queue kept in process memory. It is safe for
// concurrent use.
//
// Tasks are ordered by due time (NotBefore, or EnqueuedAt when unset) and
// FIFO among equal due times, so a scheduled retry never holds back a task
// that is already due.
type InMemoryQueue struct {
	mu       sync.Mutex
	tasks    []Task
	capacity int

	// changed is closed and replaced whenever tasks is modified.
	changed chan struct{}
}

// NewInMemoryQueue creates a new queue with the given capacity.
// For tests and small deployments, a modest capacity (e.g. 1024) is fine.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		capacity: capacity,
		changed:  make(chan struct{}),
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

// Enqueue blocks while the queue is full.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	for {
		q.mu.Lock()
		if len(q.tasks) < q.capacity {
			due := dueAt(t)
			i := sort.Search(len(q.tasks), func(i int) bool {
				return dueAt(q.tasks[i]).After(due)
			})
			q.tasks = append(q.tasks, Task{})
			copy(q.tasks[i+1:], q.tasks[i:])
			q.tasks[i] = t
			q.notifyLocked()
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dequeue returns the earliest due task, waiting for one to become due.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		var wait time.Duration
		if len(q.tasks) > 0 {
			head := q.tasks[0]
			if wait = time.Until(dueAt(head)); wait <= 0 {
				q.tasks = q.tasks[1:]
				q.notifyLocked()
				q.mu.Unlock()
				return &head, nil
			}
		}
		changed := q.changed
		q.mu.Unlock()

		var (
			timer *time.Timer
			due   <-chan time.Time
		)
		if wait > 0 {
			timer = time.NewTimer(wait)
			due = timer.C
		}
		select {
		case <-changed:
		case <-due:
		case <-ctx.Done():
		}
		if timer != nil {
			timer.Stop()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func dueAt(t Task) time.Time {
	if t.NotBefore.IsZero() {
		return t.EnqueuedAt
	}
	return t.NotBefore
}
