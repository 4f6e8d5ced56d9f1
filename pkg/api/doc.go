// Package api contains the data model shared by the progress engine, the
// lifecycle and the persistence layers.
//
// Most users interact with the higher-level stageflow package, which
// re-exports selected types from this package.
//
// # Workflow definitions
//
// A WorkflowDefinition is an ordered list of Stage templates. Top-level
// stages are ordered by Step. A sub-stage names its parent through
// ParentStageID and has no ordering of its own.
//
// Who acts on a stage is an Assignee, a closed set of variants:
// RequestorAssignee, RequestorDepartmentAssignee, FixedAssignee and
// LookupFieldAssignee. A nil Assignee means the definition does not say.
// AssigneeSpec is its flat serialized form.
//
// # Requests
//
// A WorkflowRequest carries an append-only history of StageResponse
// records. A sub-stage response points at the response id of its parent
// stage's entry, not at the parent template. CurrentStage is the backend's
// pointer to what the request is waiting on; its zero value means nothing
// is pending.
//
// # Errors
//
// Contract violations in fetched data are reported as *DataIntegrityError,
// which matches ErrDataIntegrity with errors.Is.
//
// # Observability
//
// Observer receives integrity issues, failed fetches, refreshes and
// submissions. NoopObserver, LoggingObserver (log/slog), BasicMetrics and
// CompositeObserver are provided.
package api
