// Package telemetry exports lifecycle observations as OpenTelemetry metrics.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eduxora/stageflow/pkg/api"
)

// ScopeName is the instrumentation scope used when no meter is supplied.
const ScopeName = "github.com/eduxora/stageflow"

// MetricsObserver implements api.Observer on top of an OpenTelemetry meter.
// Combine it with api.NewLoggingObserver through api.NewCompositeObserver.
type MetricsObserver struct {
	integrityIssues metric.Int64Counter
	fetchFailures   metric.Int64Counter
	refreshes       metric.Int64Counter
	submissions     metric.Int64Counter
	inFlight        metric.Int64UpDownCounter
	submitDuration  metric.Float64Histogram
}

var _ api.Observer = (*MetricsObserver)(nil)

// NewMetricsObserver creates the instruments on meter, or on the global
// meter provider when meter is nil.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	if meter == nil {
		meter = otel.Meter(ScopeName)
	}

	var (
		m    MetricsObserver
		errs = make([]error, 6)
	)
	m.integrityIssues, errs[0] = meter.Int64Counter(
		"stageflow.integrity.issues",
		metric.WithDescription("Workflow data integrity issues found while deriving progress"),
	)
	m.fetchFailures, errs[1] = meter.Int64Counter(
		"stageflow.fetch.failures",
		metric.WithDescription("Failed backend queries"),
	)
	m.refreshes, errs[2] = meter.Int64Counter(
		"stageflow.refreshes",
		metric.WithDescription("Completed request refreshes"),
	)
	m.submissions, errs[3] = meter.Int64Counter(
		"stageflow.submissions",
		metric.WithDescription("Stage completion submissions by outcome"),
	)
	m.inFlight, errs[4] = meter.Int64UpDownCounter(
		"stageflow.submissions.inflight",
		metric.WithDescription("Stage completion submissions awaiting the backend"),
	)
	m.submitDuration, errs[5] = meter.Float64Histogram(
		"stageflow.submission.duration",
		metric.WithDescription("Round trip of stage completion submissions"),
		metric.WithUnit("s"),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *MetricsObserver) OnIntegrityIssue(ctx context.Context, workflowID string, err error) {
	m.integrityIssues.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow.id", workflowID)))
}

func (m *MetricsObserver) OnFetchFailed(ctx context.Context, requestID string, query string, err error) {
	m.fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("query", query)))
}

func (m *MetricsObserver) OnRefreshed(ctx context.Context, requestID string) {
	m.refreshes.Add(ctx, 1)
}

func (m *MetricsObserver) OnSubmitStart(ctx context.Context, c api.Completion) {
	m.inFlight.Add(ctx, 1)
}

func (m *MetricsObserver) OnSubmitCompleted(ctx context.Context, c api.Completion, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("action", string(c.Action)),
		attribute.String("outcome", outcome),
	)

	m.inFlight.Add(ctx, -1)
	m.submissions.Add(ctx, 1, attrs)
	m.submitDuration.Record(ctx, d.Seconds(), attrs)
}
