package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eduxora/stageflow/internal/persistence"
	"github.com/eduxora/stageflow/internal/taskqueue"
	"github.com/eduxora/stageflow/pkg/api"
	"github.com/eduxora/stageflow/pkg/progress"
)

var (
	// ErrSubmissionInFlight is returned when a completion for the same
	// request is already pending in this process.
	ErrSubmissionInFlight = errors.New("a submission for this request is already in flight")

	// ErrRejectNotAllowed is returned when Reject is submitted for a stage
	// that does not require approval.
	ErrRejectNotAllowed = errors.New("stage does not require approval; reject is not allowed")

	// ErrNoRequestData is returned by Load when neither the backend nor a
	// snapshot can provide the request detail.
	ErrNoRequestData = errors.New("no request data available")
)

// Query names reported to observers and recorded in fetch.failed events.
const (
	QueryRequest      = "request"
	QueryCurrentStage = "current_stage"
)

// RemoteAPI is the backend the lifecycle reads from and submits to.
type RemoteAPI interface {
	FetchRequest(ctx context.Context, requestID string) (*api.WorkflowRequest, error)
	FetchCurrentStage(ctx context.Context, requestID string) (*api.CurrentStage, error)
	CompleteStage(ctx context.Context, comp api.Completion) error
}

// Config describes how to construct a Lifecycle.
type Config struct {
	Remote      RemoteAPI
	Persistence persistence.Persistence
	Engine      *progress.Engine
	Observer    api.Observer
	Logger      *slog.Logger

	// Queue, when set, receives a refresh task after a successful
	// submission instead of refetching inline.
	Queue taskqueue.Queue

	Now func() time.Time
}

// Lifecycle orchestrates loading, refreshing and submitting stage decisions
// for workflow requests. It is safe for concurrent use.
type Lifecycle struct {
	remote    RemoteAPI
	snapshots persistence.SnapshotStore
	events    persistence.EventStore
	engine    *progress.Engine
	observer  api.Observer
	logger    *slog.Logger
	queue     taskqueue.Queue
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Lifecycle. Missing stores default to in-memory ones.
func New(cfg Config) (*Lifecycle, error) {
	if cfg.Remote == nil {
		return nil, errors.New("lifecycle: remote API is required")
	}

	l := &Lifecycle{
		remote:    cfg.Remote,
		snapshots: cfg.Persistence.Snapshots,
		events:    cfg.Persistence.Events,
		engine:    cfg.Engine,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		queue:     cfg.Queue,
		now:       cfg.Now,
		inFlight:  make(map[string]struct{}),
	}
	if l.snapshots == nil {
		l.snapshots = persistence.NewInMemorySnapshotStore()
	}
	if l.events == nil {
		l.events = persistence.NoopEventStore{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.observer == nil {
		l.observer = api.NewLoggingObserver(l.logger)
	}
	if l.engine == nil {
		l.engine = progress.New(progress.WithObserver(l.observer))
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// RequestView is a derived progress view together with where its inputs
// came from.
type RequestView struct {
	View    *progress.View       `json:"view"`
	Request *api.WorkflowRequest `json:"request"`

	// Stale is set when at least one input was served from a snapshot
	// because the live fetch failed.
	Stale bool `json:"stale"`
	// Partial is set when the current-stage pointer is unavailable.
	Partial bool `json:"partial"`

	RequestAt time.Time `json:"requestAt"`
	CurrentAt time.Time `json:"currentAt"`
}

type fetched struct {
	req    *api.WorkflowRequest
	reqErr error
	cur    *api.CurrentStage
	curErr error
	at     time.Time
}

// fetchBoth runs the two independent queries concurrently. Results are
// discarded when ctx ends before both have arrived.
func (l *Lifecycle) fetchBoth(ctx context.Context, requestID string) (fetched, error) {
	var (
		f  fetched
		wg sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.req, f.reqErr = l.remote.FetchRequest(ctx, requestID)
		if f.req == nil && f.reqErr == nil {
			f.reqErr = ErrNoRequestData
		}
	}()
	go func() {
		defer wg.Done()
		f.cur, f.curErr = l.remote.FetchCurrentStage(ctx, requestID)
		if f.cur == nil && f.curErr == nil {
			f.cur = &api.CurrentStage{}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return fetched{}, err
	}
	f.at = l.now()
	return f, nil
}

// store writes the successful halves of f to the snapshot store and reports
// the failed ones. It returns the fetch errors joined.
func (l *Lifecycle) store(ctx context.Context, requestID string, f fetched) error {
	if f.reqErr == nil {
		if err := l.snapshots.SaveRequest(ctx, f.req, f.at); err != nil {
			l.logger.WarnContext(ctx, "snapshot save failed", "request_id", requestID, "query", QueryRequest, "error", err)
		}
	} else {
		l.fetchFailed(ctx, requestID, QueryRequest, f.reqErr)
	}

	if f.curErr == nil {
		if err := l.snapshots.SaveCurrentStage(ctx, requestID, f.cur, f.at); err != nil {
			l.logger.WarnContext(ctx, "snapshot save failed", "request_id", requestID, "query", QueryCurrentStage, "error", err)
		}
	} else {
		l.fetchFailed(ctx, requestID, QueryCurrentStage, f.curErr)
	}

	var errs []error
	if f.reqErr != nil {
		errs = append(errs, fmt.Errorf("fetch %s: %w", QueryRequest, f.reqErr))
	}
	if f.curErr != nil {
		errs = append(errs, fmt.Errorf("fetch %s: %w", QueryCurrentStage, f.curErr))
	}
	return errors.Join(errs...)
}

func (l *Lifecycle) fetchFailed(ctx context.Context, requestID, query string, err error) {
	if d, ok := api.IsDataIntegrityError(err); ok {
		l.observer.OnIntegrityIssue(ctx, d.WorkflowID, d)
	}
	l.observer.OnFetchFailed(ctx, requestID, query, err)
	l.appendEvent(ctx, api.RequestEvent{
		RequestID: requestID,
		Type:      api.EventFetchFailed,
		Detail:    query + ": " + err.Error(),
	})
}

// Load fetches the request detail and current-stage pointer concurrently
// and derives the progress view. A failed query falls back to the last
// snapshot; a missing current stage renders the view without one.
// Load only fails when no request detail is available at all.
func (l *Lifecycle) Load(ctx context.Context, requestID string) (*RequestView, error) {
	f, err := l.fetchBoth(ctx, requestID)
	if err != nil {
		return nil, err
	}
	fetchErr := l.store(ctx, requestID, f)

	rv := &RequestView{
		Request:   f.req,
		RequestAt: f.at,
	}
	var cur api.CurrentStage
	if f.curErr == nil {
		if f.cur != nil {
			cur = *f.cur
		}
		rv.CurrentAt = f.at
	}

	if f.reqErr != nil || f.curErr != nil {
		snap, err := l.snapshots.GetSnapshot(ctx, requestID)
		if err != nil && !errors.Is(err, persistence.ErrSnapshotNotFound) {
			l.logger.WarnContext(ctx, "snapshot read failed", "request_id", requestID, "error", err)
		}
		if snap == nil {
			snap = &api.Snapshot{RequestID: requestID}
		}

		if f.reqErr != nil {
			rv.Request, rv.RequestAt = snap.Request, snap.RequestAt
			rv.Stale = rv.Request != nil
		}
		if f.curErr != nil {
			if snap.Current != nil {
				cur = *snap.Current
				rv.CurrentAt = snap.CurrentAt
				rv.Stale = true
			} else {
				rv.Partial = true
			}
		}
	}

	if rv.Request == nil {
		return nil, fmt.Errorf("load request %s: %w: %w", requestID, ErrNoRequestData, fetchErr)
	}

	rv.View = l.engine.Derive(ctx, nil, rv.Request, cur)
	return rv, nil
}

// Refresh refetches both queries and overwrites the stored snapshot with
// whatever succeeded.
func (l *Lifecycle) Refresh(ctx context.Context, requestID string) error {
	f, err := l.fetchBoth(ctx, requestID)
	if err != nil {
		return err
	}
	if err := l.store(ctx, requestID, f); err != nil {
		return fmt.Errorf("refresh request %s: %w", requestID, err)
	}

	l.observer.OnRefreshed(ctx, requestID)
	l.appendEvent(ctx, api.RequestEvent{RequestID: requestID, Type: api.EventViewRefreshed})
	return nil
}

// RequestRefresh schedules a refresh through the queue, or runs it inline
// when no queue is configured.
func (l *Lifecycle) RequestRefresh(ctx context.Context, requestID string) error {
	if l.queue == nil {
		return l.Refresh(ctx, requestID)
	}
	return l.queue.Enqueue(ctx, taskqueue.NewRefreshTask(requestID))
}

// Submit posts a stage decision. At most one submission per request is in
// flight at a time. On failure nothing stored is touched; on success the
// snapshot is invalidated and refetched.
func (l *Lifecycle) Submit(ctx context.Context, comp api.Completion) error {
	if !comp.Action.Valid() {
		return fmt.Errorf("%w: %q", api.ErrInvalidAction, comp.Action)
	}
	if comp.RequestID == "" || comp.StageID == "" {
		return fmt.Errorf("%w: request and stage ids are required", api.ErrInvalidAction)
	}

	if !l.acquire(comp.RequestID) {
		return ErrSubmissionInFlight
	}
	defer l.release(comp.RequestID)

	if comp.Action == api.ActionReject {
		if stage, ok := l.knownStage(ctx, comp); ok && !stage.IsRequireApproval {
			return fmt.Errorf("stage %s: %w", stage.ID, ErrRejectNotAllowed)
		}
	}

	l.observer.OnSubmitStart(ctx, comp)
	l.appendEvent(ctx, api.RequestEvent{
		RequestID: comp.RequestID,
		Type:      api.EventSubmissionStarted,
		StageID:   comp.StageID,
		Detail:    "action=" + string(comp.Action),
	})

	start := time.Now()
	err := l.remote.CompleteStage(ctx, comp)
	l.observer.OnSubmitCompleted(ctx, comp, err, time.Since(start))

	if err != nil {
		l.appendEvent(ctx, api.RequestEvent{
			RequestID: comp.RequestID,
			Type:      api.EventSubmissionFailed,
			StageID:   comp.StageID,
			Detail:    err.Error(),
		})
		return fmt.Errorf("complete stage %s of request %s: %w", comp.StageID, comp.RequestID, err)
	}

	l.appendEvent(ctx, api.RequestEvent{
		RequestID: comp.RequestID,
		Type:      api.EventSubmissionCompleted,
		StageID:   comp.StageID,
		Detail:    "action=" + string(comp.Action),
	})

	if err := l.snapshots.Invalidate(ctx, comp.RequestID); err != nil {
		l.logger.WarnContext(ctx, "snapshot invalidate failed", "request_id", comp.RequestID, "error", err)
	}
	// The decision is recorded upstream; a failed refetch only leaves the
	// view to be refreshed later.
	if err := l.RequestRefresh(ctx, comp.RequestID); err != nil {
		l.logger.WarnContext(ctx, "post-submit refresh failed", "request_id", comp.RequestID, "error", err)
	}
	return nil
}

// Events lists the recorded lifecycle events of a request in append order.
func (l *Lifecycle) Events(ctx context.Context, requestID string) ([]api.RequestEvent, error) {
	return l.events.ListEvents(ctx, requestID)
}

// knownStage resolves the stage a completion targets from the last stored
// data. comp.StageID may name either the pending response or the template.
func (l *Lifecycle) knownStage(ctx context.Context, comp api.Completion) (api.Stage, bool) {
	snap, err := l.snapshots.GetSnapshot(ctx, comp.RequestID)
	if err != nil {
		return api.Stage{}, false
	}

	templateID := comp.StageID
	if cur := snap.Current; cur != nil && (cur.ID == comp.StageID || cur.StageID == comp.StageID) {
		if cur.Stage != nil {
			return *cur.Stage, true
		}
		templateID = cur.StageID
	}
	if snap.Request != nil {
		return snap.Request.Workflow.StageByID(templateID)
	}
	return api.Stage{}, false
}

func (l *Lifecycle) acquire(requestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inFlight[requestID]; busy {
		return false
	}
	l.inFlight[requestID] = struct{}{}
	return true
}

func (l *Lifecycle) release(requestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.inFlight, requestID)
}

func (l *Lifecycle) appendEvent(ctx context.Context, ev api.RequestEvent) {
	if ev.At.IsZero() {
		ev.At = l.now()
	}
	if err := l.events.AppendEvent(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "event append failed", "request_id", ev.RequestID, "type", ev.Type, "error", err)
	}
}
