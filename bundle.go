package stageflow

import (
	"database/sql"

	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/internal/taskqueue"
	workerpkg "github.com/eduxora/stageflow/pkg/worker"
)

// WorkerBundle wires together a Lifecycle, a durable refresh queue, and a
// Worker that consumes tasks from that queue.
//
// For now, we only provide a SQLite-backed bundle.
type WorkerBundle struct {
	Lifecycle *Lifecycle
	Worker    *workerpkg.Worker

	// queue is kept unexported; it is primarily useful for internal
	// inspection and tests.
	queue taskqueue.Queue
}

// NewSQLiteBundle constructs a Lifecycle + Queue + Worker combo sharing the
// same SQLite database. Snapshots, lifecycle events and queued refreshes
// are all persisted in the provided *sql.DB, and a successful submission
// enqueues its refresh instead of refetching inline.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:stageflow.db?_journal=WAL")
//	bundle, err := stageflow.NewSQLiteBundle(db, client, worker.Config{MaxAttempts: 3})
//	go bundle.Worker.Run(ctx)
//	view, err := bundle.Lifecycle.Load(ctx, requestID)
func NewSQLiteBundle(db *sql.DB, r RemoteAPI, cfg workerpkg.Config) (*WorkerBundle, error) {
	p, err := sqlitePersistence(db)
	if err != nil {
		return nil, err
	}

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}

	lc, err := lifecycle.New(lifecycle.Config{
		Remote:      r,
		Persistence: p,
		Queue:       q,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &WorkerBundle{
		Lifecycle: lc,
		Worker:    workerpkg.NewWithConfig(lc, q, cfg),
		queue:     q,
	}, nil
}
