package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

// SQLiteSnapshotStore is a SnapshotStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// Ensure SQLiteSnapshotStore implements SnapshotStore.
var _ SnapshotStore = (*SQLiteSnapshotStore)(nil)

// NewSQLiteSnapshotStore initializes the required schema in the given
// database and returns a new SQLiteSnapshotStore.
func NewSQLiteSnapshotStore(db *sql.DB) (*SQLiteSnapshotStore, error) {
	s := &SQLiteSnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSnapshotStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS request_snapshots (
			request_id TEXT PRIMARY KEY,
			request BLOB,
			request_at INTEGER NOT NULL DEFAULT 0,
			current_stage BLOB,
			current_at INTEGER NOT NULL DEFAULT 0
		);`,
	)
	return err
}

func (s *SQLiteSnapshotStore) SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error {
	data, err := encodeValue(req)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_snapshots (request_id, request, request_at)
		VALUES (?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			request = excluded.request,
			request_at = excluded.request_at`,
		req.ID,
		data,
		unixNanos(at),
	)
	return err
}

func (s *SQLiteSnapshotStore) SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error {
	data, err := encodeValue(cur)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_snapshots (request_id, current_stage, current_at)
		VALUES (?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			current_stage = excluded.current_stage,
			current_at = excluded.current_at`,
		requestID,
		data,
		unixNanos(at),
	)
	return err
}

func (s *SQLiteSnapshotStore) GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request, request_at, current_stage, current_at
		FROM request_snapshots
		WHERE request_id = ?`,
		requestID,
	)

	var (
		request, current     []byte
		requestAt, currentAt int64
	)
	if err := row.Scan(&request, &requestAt, &current, &currentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	return buildSnapshot(requestID, request, fromUnixNanos(requestAt), current, fromUnixNanos(currentAt))
}

func (s *SQLiteSnapshotStore) Invalidate(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM request_snapshots WHERE request_id = ?`, requestID)
	return err
}
