package stageflow

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/internal/persistence"
	"github.com/eduxora/stageflow/internal/remote"
	"github.com/eduxora/stageflow/pkg/api"
	"github.com/eduxora/stageflow/pkg/progress"
)

// Re-export key types so users don't need to dig into pkg/api and the
// internal packages.

type (
	WorkflowDefinition = api.WorkflowDefinition
	Stage              = api.Stage
	Assignee           = api.Assignee
	StageResponse      = api.StageResponse
	WorkflowRequest    = api.WorkflowRequest
	CurrentStage       = api.CurrentStage
	ResponseStatus     = api.ResponseStatus
	Action             = api.Action
	Completion         = api.Completion
	RequestEvent       = api.RequestEvent

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	View        = progress.View
	StageView   = progress.StageView
	StageStatus = progress.StageStatus
	Percent     = progress.Percent

	Lifecycle   = lifecycle.Lifecycle
	RequestView = lifecycle.RequestView
	RemoteAPI   = lifecycle.RemoteAPI
	Client      = remote.Client
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export sentinel errors.

var (
	ErrDataIntegrity      = api.ErrDataIntegrity
	ErrInvalidAction      = api.ErrInvalidAction
	ErrSubmissionInFlight = lifecycle.ErrSubmissionInFlight
	ErrRejectNotAllowed   = lifecycle.ErrRejectNotAllowed
	ErrNoRequestData      = lifecycle.ErrNoRequestData
	ErrRequestNotFound    = remote.ErrRequestNotFound
)

// Re-export decision values and display statuses.

const (
	ActionApprove = api.ActionApprove
	ActionReject  = api.ActionReject

	StatusNotStarted = progress.StatusNotStarted
	StatusCurrent    = progress.StatusCurrent
	StatusApproved   = progress.StatusApproved
	StatusRejected   = progress.StatusRejected
)

// NewClient returns a client for the EduXora workflow-request API. An empty
// token sends no Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return remote.New(baseURL, remote.WithToken(token), remote.WithTimeout(timeout))
}

// Derive evaluates the progress engine once. When def is nil the workflow
// nested in req is used. Integrity issues are logged with slog.Default().
func Derive(ctx context.Context, def *WorkflowDefinition, req *WorkflowRequest, current CurrentStage) *View {
	return progress.New().Derive(ctx, def, req, current)
}

// Lifecycle constructors
// These wrap the internal packages so external callers never need to
// import them.

func newLifecycle(r RemoteAPI, p persistence.Persistence, obs Observer) (*Lifecycle, error) {
	return lifecycle.New(lifecycle.Config{Remote: r, Persistence: p, Observer: obs})
}

// NewInMemoryLifecycle returns a Lifecycle whose snapshots and events live
// in process memory.
func NewInMemoryLifecycle(r RemoteAPI) (*Lifecycle, error) {
	return newLifecycle(r, persistence.NewInMemory(), nil)
}

// NewInMemoryLifecycleWithObserver returns an in-memory Lifecycle with the given Observer.
func NewInMemoryLifecycleWithObserver(r RemoteAPI, obs Observer) (*Lifecycle, error) {
	return newLifecycle(r, persistence.NewInMemory(), obs)
}

// NewSQLiteLifecycle returns a Lifecycle that keeps snapshots and lifecycle
// events in a SQLite database.
func NewSQLiteLifecycle(db *sql.DB, r RemoteAPI) (*Lifecycle, error) {
	return NewSQLiteLifecycleWithObserver(db, r, nil)
}

// NewSQLiteLifecycleWithObserver returns a SQLite-backed Lifecycle with the given Observer.
func NewSQLiteLifecycleWithObserver(db *sql.DB, r RemoteAPI, obs Observer) (*Lifecycle, error) {
	p, err := sqlitePersistence(db)
	if err != nil {
		return nil, err
	}
	return newLifecycle(r, p, obs)
}

// NewPostgresLifecycle returns a Lifecycle that keeps snapshots in
// PostgreSQL. Events stay in memory.
func NewPostgresLifecycle(db *sql.DB, r RemoteAPI) (*Lifecycle, error) {
	return NewPostgresLifecycleWithObserver(db, r, nil)
}

// NewPostgresLifecycleWithObserver returns a Postgres-backed Lifecycle with the given Observer.
func NewPostgresLifecycleWithObserver(db *sql.DB, r RemoteAPI, obs Observer) (*Lifecycle, error) {
	snaps, err := persistence.NewPostgresSnapshotStore(db)
	if err != nil {
		return nil, err
	}
	return newLifecycle(r, persistence.Persistence{Snapshots: snaps, Events: persistence.NewInMemoryEventStore()}, obs)
}

// NewRedisLifecycle returns a Lifecycle that keeps snapshots in Redis
// under the "stageflow:" prefix. A positive ttl expires idle snapshots.
func NewRedisLifecycle(client *redis.Client, r RemoteAPI, ttl time.Duration) (*Lifecycle, error) {
	return NewRedisLifecycleWithObserver(client, r, ttl, nil)
}

// NewRedisLifecycleWithObserver returns a Redis-backed Lifecycle with the given Observer.
func NewRedisLifecycleWithObserver(client *redis.Client, r RemoteAPI, ttl time.Duration, obs Observer) (*Lifecycle, error) {
	snaps := persistence.NewRedisSnapshotStore(client, "", ttl)
	return newLifecycle(r, persistence.Persistence{Snapshots: snaps, Events: persistence.NewInMemoryEventStore()}, obs)
}

// NewMongoLifecycle returns a Lifecycle that keeps snapshots in the
// "stageflow.snapshots" collection.
func NewMongoLifecycle(client *mongo.Client, r RemoteAPI) (*Lifecycle, error) {
	return NewMongoLifecycleWithObserver(client, r, nil)
}

// NewMongoLifecycleWithObserver returns a Mongo-backed Lifecycle with the given Observer.
func NewMongoLifecycleWithObserver(client *mongo.Client, r RemoteAPI, obs Observer) (*Lifecycle, error) {
	snaps := persistence.NewMongoSnapshotStore(client, "", "")
	return newLifecycle(r, persistence.Persistence{Snapshots: snaps, Events: persistence.NewInMemoryEventStore()}, obs)
}

func sqlitePersistence(db *sql.DB) (persistence.Persistence, error) {
	snaps, err := persistence.NewSQLiteSnapshotStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return persistence.Persistence{}, err
	}
	return persistence.Persistence{Snapshots: snaps, Events: events}, nil
}
