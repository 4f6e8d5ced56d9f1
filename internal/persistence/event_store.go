package persistence

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eduxora/stageflow/pkg/api"
)

// EventStore is an append-only history store for request lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.RequestEvent) error
	ListEvents(ctx context.Context, requestID string) ([]api.RequestEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.RequestEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, requestID string) ([]api.RequestEvent, error) {
	return nil, nil
}

// InMemoryEventStore keeps events per request in append order.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]api.RequestEvent
}

// NewInMemoryEventStore creates an empty InMemoryEventStore.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{events: make(map[string][]api.RequestEvent)}
}

var (
	_ EventStore = NoopEventStore{}
	_ EventStore = (*InMemoryEventStore)(nil)
)

func (s *InMemoryEventStore) AppendEvent(ctx context.Context, ev api.RequestEvent) error {
	ev = stampEvent(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.RequestID] = append(s.events[ev.RequestID], ev)
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, requestID string) ([]api.RequestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events[requestID]), nil
}

// stampEvent fills the id and timestamp when the caller left them empty.
func stampEvent(ev api.RequestEvent) api.RequestEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return ev
}
