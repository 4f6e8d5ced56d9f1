// Package stageflow derives and drives the stage progression of EduXora
// workflow requests.
//
// A workflow definition is an ordered list of stages. Top-level stages are
// ordered by step; sub-stages hang off a parent stage and only appear once
// the history records them. A request carries an append-only history of
// stage responses, and the backend reports a single "current stage"
// pointer saying what the request is waiting on.
//
// # Core Concepts
//
//  1. Derive (pkg/progress)
//  2. Lifecycle
//  3. Worker
//  4. Client
//
// # Derive
//
// Derive is pure. Given a definition, a history and the current pointer it
// returns a View: top-level stages in step order with their display
// status, the latest attempt of each sub-stage, and a completion
// percentage. The current stage always displays as Current, even when an
// earlier attempt on the same stage is recorded. Data that breaks the
// contract (a sub-stage whose parent does not exist, duplicate steps,
// history for unknown stages) is reported in View.Issues and through the
// Observer, never as an error.
//
// # Lifecycle
//
// A Lifecycle loads a request by fetching its detail and its current stage
// concurrently. Every successful fetch is stored as a snapshot; a failed
// fetch falls back to the last snapshot and the view is marked Stale, or
// Partial when no current stage is known at all. Submit posts an Approve
// or Reject decision. Only one submission per request is in flight at a
// time; Reject is refused for stages that do not require approval. A
// failed submission leaves stored data untouched. A successful one
// invalidates the snapshot and refetches, inline or through a queue.
//
// Snapshots can be kept in memory, SQLite, PostgreSQL, Redis or MongoDB:
//
//	lc, err := stageflow.NewSQLiteLifecycle(db, stageflow.NewClient(baseURL, token, 10*time.Second))
//	rv, err := lc.Load(ctx, "42")
//	fmt.Println(rv.View.Percent.Label(), rv.Stale)
//
// # Worker
//
// With a queue configured, refreshes after a submission are executed by a
// Worker. NewSQLiteBundle keeps snapshots, events and the queue in one
// SQLite database; LocalRunner does the same in memory for development.
//
// # Observability
//
// Observers receive integrity issues, failed fetches, refreshes and
// submissions. LoggingObserver writes them with log/slog, BasicMetrics
// counts them, and CompositeObserver fans out to several observers.
package stageflow
