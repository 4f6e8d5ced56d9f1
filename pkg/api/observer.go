package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the progress engine and the request
// lifecycle for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay rendering or submissions.
type Observer interface {
	// OnIntegrityIssue is called for every data integrity problem found
	// while deriving a progress view.
	OnIntegrityIssue(ctx context.Context, workflowID string, err error)

	// OnFetchFailed is called when one of the two request queries fails.
	// query is "request" or "current_stage".
	OnFetchFailed(ctx context.Context, requestID string, query string, err error)

	// OnRefreshed is called after fresh data for a request was stored.
	OnRefreshed(ctx context.Context, requestID string)

	// OnSubmitStart is called before a stage decision is sent upstream.
	OnSubmitStart(ctx context.Context, c Completion)

	// OnSubmitCompleted is called after the upstream call returns, for both
	// successes and failures (err != nil).
	OnSubmitCompleted(ctx context.Context, c Completion, err error, duration time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnIntegrityIssue(ctx context.Context, workflowID string, err error) {}
func (NoopObserver) OnFetchFailed(ctx context.Context, requestID string, query string, err error) {
}
func (NoopObserver) OnRefreshed(ctx context.Context, requestID string) {}
func (NoopObserver) OnSubmitStart(ctx context.Context, c Completion)   {}
func (NoopObserver) OnSubmitCompleted(ctx context.Context, c Completion, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnIntegrityIssue(ctx context.Context, workflowID string, err error) {
	for _, o := range c.observers {
		o.OnIntegrityIssue(ctx, workflowID, err)
	}
}

func (c *CompositeObserver) OnFetchFailed(ctx context.Context, requestID string, query string, err error) {
	for _, o := range c.observers {
		o.OnFetchFailed(ctx, requestID, query, err)
	}
}

func (c *CompositeObserver) OnRefreshed(ctx context.Context, requestID string) {
	for _, o := range c.observers {
		o.OnRefreshed(ctx, requestID)
	}
}

func (c *CompositeObserver) OnSubmitStart(ctx context.Context, comp Completion) {
	for _, o := range c.observers {
		o.OnSubmitStart(ctx, comp)
	}
}

func (c *CompositeObserver) OnSubmitCompleted(ctx context.Context, comp Completion, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnSubmitCompleted(ctx, comp, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs lifecycle events using
// the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnIntegrityIssue(ctx context.Context, workflowID string, err error) {
	o.Logger.WarnContext(ctx, "data_integrity",
		slog.String("workflow_id", workflowID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnFetchFailed(ctx context.Context, requestID string, query string, err error) {
	o.Logger.WarnContext(ctx, "fetch_failed",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnRefreshed(ctx context.Context, requestID string) {
	o.Logger.DebugContext(ctx, "view_refreshed",
		slog.String("request_id", requestID),
	)
}

func (o *LoggingObserver) OnSubmitStart(ctx context.Context, c Completion) {
	o.Logger.InfoContext(ctx, "submit_start",
		slog.String("request_id", c.RequestID),
		slog.String("stage_id", c.StageID),
		slog.String("action", string(c.Action)),
	)
}

func (o *LoggingObserver) OnSubmitCompleted(ctx context.Context, c Completion, err error, d time.Duration) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "submit_completed",
		slog.String("request_id", c.RequestID),
		slog.String("stage_id", c.StageID),
		slog.String("action", string(c.Action)),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate submission latency.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	integrityIssues    atomic.Int64
	fetchFailures      atomic.Int64
	refreshes          atomic.Int64
	submitsStarted     atomic.Int64
	submitsSucceeded   atomic.Int64
	submitsFailed      atomic.Int64
	totalSubmitLatency atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	IntegrityIssues int64
	FetchFailures   int64
	Refreshes       int64

	SubmitsStarted   int64
	SubmitsSucceeded int64
	SubmitsFailed    int64
	SubmitsInFlight  int64

	AvgSubmitLatency time.Duration
}

func (m *BasicMetrics) OnIntegrityIssue(ctx context.Context, workflowID string, err error) {
	m.integrityIssues.Add(1)
}

func (m *BasicMetrics) OnFetchFailed(ctx context.Context, requestID string, query string, err error) {
	m.fetchFailures.Add(1)
}

func (m *BasicMetrics) OnRefreshed(ctx context.Context, requestID string) {
	m.refreshes.Add(1)
}

func (m *BasicMetrics) OnSubmitStart(ctx context.Context, c Completion) {
	m.submitsStarted.Add(1)
}

func (m *BasicMetrics) OnSubmitCompleted(ctx context.Context, c Completion, err error, d time.Duration) {
	if err != nil {
		m.submitsFailed.Add(1)
		return
	}
	// Only successful submissions count towards average latency.
	m.submitsSucceeded.Add(1)
	m.totalSubmitLatency.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.submitsStarted.Load()
	succeeded := m.submitsSucceeded.Load()
	failed := m.submitsFailed.Load()
	totalNs := m.totalSubmitLatency.Load()

	var avg time.Duration
	if succeeded > 0 {
		avg = time.Duration(totalNs / succeeded)
	}

	return BasicMetricsSnapshot{
		IntegrityIssues:  m.integrityIssues.Load(),
		FetchFailures:    m.fetchFailures.Load(),
		Refreshes:        m.refreshes.Load(),
		SubmitsStarted:   started,
		SubmitsSucceeded: succeeded,
		SubmitsFailed:    failed,
		SubmitsInFlight:  started - succeeded - failed,
		AvgSubmitLatency: avg,
	}
}
