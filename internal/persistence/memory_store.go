package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

// InMemorySnapshotStore is a goroutine-safe SnapshotStore backed by a map.
// Values are gob-copied on the way in and out so callers never share
// memory with the store.
type InMemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]memorySnapshot
}

type memorySnapshot struct {
	request   []byte
	requestAt time.Time
	current   []byte
	currentAt time.Time
}

// NewInMemorySnapshotStore creates an empty InMemorySnapshotStore.
func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{snaps: make(map[string]memorySnapshot)}
}

// Ensure InMemorySnapshotStore implements SnapshotStore.
var _ SnapshotStore = (*InMemorySnapshotStore)(nil)

func (s *InMemorySnapshotStore) SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error {
	data, err := encodeValue(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snaps[req.ID]
	snap.request = data
	snap.requestAt = at
	s.snaps[req.ID] = snap
	return nil
}

func (s *InMemorySnapshotStore) SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error {
	data, err := encodeValue(cur)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snaps[requestID]
	snap.current = data
	snap.currentAt = at
	s.snaps[requestID] = snap
	return nil
}

func (s *InMemorySnapshotStore) GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snaps[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return buildSnapshot(requestID, snap.request, snap.requestAt, snap.current, snap.currentAt)
}

func (s *InMemorySnapshotStore) Invalidate(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snaps, requestID)
	return nil
}

// buildSnapshot decodes the stored halves. Every backend funnels through it.
func buildSnapshot(requestID string, request []byte, requestAt time.Time, current []byte, currentAt time.Time) (*api.Snapshot, error) {
	req, err := decodeValue[api.WorkflowRequest](request)
	if err != nil {
		return nil, err
	}
	cur, err := decodeValue[api.CurrentStage](current)
	if err != nil {
		return nil, err
	}
	snap := &api.Snapshot{RequestID: requestID, Request: req, Current: cur}
	if req != nil {
		snap.RequestAt = requestAt
	}
	if cur != nil {
		snap.CurrentAt = currentAt
	}
	return snap, nil
}
