package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

// PostgresSnapshotStore is a SnapshotStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresSnapshotStore struct {
	db *sql.DB
}

// Ensure PostgresSnapshotStore implements SnapshotStore.
var _ SnapshotStore = (*PostgresSnapshotStore)(nil)

// NewPostgresSnapshotStore initializes the required schema in the given
// database and returns a new PostgresSnapshotStore.
func NewPostgresSnapshotStore(db *sql.DB) (*PostgresSnapshotStore, error) {
	s := &PostgresSnapshotStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresSnapshotStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS request_snapshots (
			request_id    TEXT PRIMARY KEY,
			request       BYTEA,
			request_at    BIGINT NOT NULL DEFAULT 0,
			current_stage BYTEA,
			current_at    BIGINT NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (s *PostgresSnapshotStore) SaveRequest(ctx context.Context, req *api.WorkflowRequest, at time.Time) error {
	data, err := encodeValue(req)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_snapshots (request_id, request, request_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO UPDATE
		SET request    = EXCLUDED.request,
		    request_at = EXCLUDED.request_at
	`,
		req.ID,
		data,
		unixNanos(at),
	)
	return err
}

func (s *PostgresSnapshotStore) SaveCurrentStage(ctx context.Context, requestID string, cur *api.CurrentStage, at time.Time) error {
	data, err := encodeValue(cur)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_snapshots (request_id, current_stage, current_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (request_id) DO UPDATE
		SET current_stage = EXCLUDED.current_stage,
		    current_at    = EXCLUDED.current_at
	`,
		requestID,
		data,
		unixNanos(at),
	)
	return err
}

func (s *PostgresSnapshotStore) GetSnapshot(ctx context.Context, requestID string) (*api.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request, request_at, current_stage, current_at
		FROM request_snapshots
		WHERE request_id = $1
	`,
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

func (s *PostgresSnapshotStore) Invalidate(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM request_snapshots WHERE request_id = $1`, requestID)
	return err
}
