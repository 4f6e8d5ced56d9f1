package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a request.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SnapshotStore keeps the last successfully fetched data per request so a
// view can still be rendered when the backend is unreachable.
//
// The two halves of a snapshot are written independently: a request detail
// fetch and a current-stage fetch may succeed or fail on their own.
type SnapshotStore interface {
	// SaveRequest stores the request detail (history and nested definition).
	SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error
	// SaveCurrentStage stores the current-stage pointer for requestID.
	SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error
	// GetSnapshot returns ErrSnapshotNotFound when nothing was stored.
	GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error)
	// Invalidate drops both halves. It is idempotent.
	Invalidate(ctx context.Context, requestID string) error
}
