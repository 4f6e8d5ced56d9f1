package persistence

import (
	"context"
	"database/sql"

	"github.com/eduxora/stageflow/pkg/api"
)

// SQLiteEventStore stores request events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS request_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			request_id TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			stage_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_request_events_request_id ON request_events(request_id, seq);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.RequestEvent) error {
	ev = stampEvent(ev)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_events (id, request_id, at, type, stage_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.RequestID,
		ev.At.UnixNano(),
		string(ev.Type),
		ev.StageID,
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, requestID string) ([]api.RequestEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, at, type, stage_id, detail
		FROM request_events
		WHERE request_id = ?
		ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RequestEvent
	for rows.Next() {
		var (
			ev  api.RequestEvent
			atN int64
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.RequestID, &atN, &typ, &ev.StageID, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = fromUnixNanos(atN)
		ev.Type = api.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}
