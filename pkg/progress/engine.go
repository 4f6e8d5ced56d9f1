package progress

import (
	"context"

	"github.com/eduxora/stageflow/pkg/api"
)

// StageView is one top-level stage with its derived status.
type StageView struct {
	Stage  api.Stage   `json:"stage"`
	Status StageStatus `json:"status"`

	// Response is the recorded response for the stage, if any.
	Response  *api.StageResponse `json:"response,omitempty"`
	SubStages []SubStageView     `json:"subStages,omitempty"`
}

// View is the presentation-ready progress model of one request.
type View struct {
	WorkflowID string `json:"workflowId"`
	RequestID  string `json:"requestId,omitempty"`

	Stages []StageView `json:"stages"`

	// Current is the pointer the view was derived against. It is zero when
	// the request has no pending stage.
	Current api.CurrentStage `json:"current"`

	// Percent is only meaningful when HasPercent is true.
	Percent    Percent `json:"percent"`
	HasPercent bool    `json:"hasPercent"`

	Issues []*api.DataIntegrityError `json:"issues,omitempty"`
}

// CurrentStage returns the view of the stage marked current, if any.
func (v *View) CurrentStage() (StageView, bool) {
	for _, s := range v.Stages {
		if s.Status == StatusCurrent {
			return s, true
		}
	}
	return StageView{}, false
}

// Engine derives progress views. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	observer api.Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the observer notified of integrity issues.
func WithObserver(obs api.Observer) Option {
	return func(e *Engine) {
		if obs != nil {
			e.observer = obs
		}
	}
}

// New returns an Engine. Integrity issues are logged with slog.Default()
// unless another observer is configured.
func New(opts ...Option) *Engine {
	e := &Engine{observer: api.NewLoggingObserver(nil)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Derive computes the progress view of req against def and the current
// stage pointer. When def is nil the workflow nested in req is used.
//
// Derive never fails: missing data renders as not started, and integrity
// problems are reported through the observer and View.Issues.
func (e *Engine) Derive(ctx context.Context, def *api.WorkflowDefinition, req *api.WorkflowRequest, current api.CurrentStage) *View {
	if def == nil && req != nil {
		def = req.Workflow
	}

	var history []api.StageResponse
	if req != nil {
		history = req.Stages
	}
	idx := NewResponseIndex(history)

	v := &View{Current: current}
	if def != nil {
		v.WorkflowID = def.ID
	}
	if req != nil {
		v.RequestID = req.ID
	}

	v.Issues = append(validateDefinition(def), validateHistory(def, idx)...)
	for _, issue := range v.Issues {
		e.observer.OnIntegrityIssue(ctx, v.WorkflowID, issue)
	}

	ordered := OrderTopLevelStages(def)
	v.Stages = make([]StageView, 0, len(ordered))
	for _, s := range ordered {
		sv := StageView{
			Stage:     s,
			Status:    ResolveStageStatus(s, idx, current),
			SubStages: ResolveSubStages(s, idx, current),
		}
		if r, ok := idx.Lookup(s.ID); ok {
			sv.Response = &r
		}
		v.Stages = append(v.Stages, sv)
	}

	v.Percent, v.HasPercent = ComputeCompletionPercent(req, def)
	return v
}
