package stageflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubRemote serves a fixed request and current stage. When failing is set,
// every call fails.
type stubRemote struct {
	mu        sync.Mutex
	req       *WorkflowRequest
	cur       *CurrentStage
	failing   bool
	completed []Completion
	fetches   int
}

func (s *stubRemote) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *stubRemote) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *stubRemote) FetchRequest(ctx context.Context, id string) (*WorkflowRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.failing {
		return nil, errors.New("backend unavailable")
	}
	r := *s.req
	return &r, nil
}

func (s *stubRemote) FetchCurrentStage(ctx context.Context, id string) (*CurrentStage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("backend unavailable")
	}
	c := *s.cur
	return &c, nil
}

func (s *stubRemote) CompleteStage(ctx context.Context, comp Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("backend unavailable")
	}
	s.completed = append(s.completed, comp)
	return nil
}

func sampleWorkflow() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:   "wf-1",
		Name: "Leave request",
		Stages: []Stage{
			{ID: "s1", Name: "Manager", Step: 0, IsRequireApproval: true},
			{ID: "s2", Name: "HR", Step: 1, IsRequireApproval: true},
			{ID: "s3", Name: "Notify", Step: 2},
		},
	}
}

func newStubRemote() *stubRemote {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &stubRemote{
		req: &WorkflowRequest{
			ID:       "42",
			Workflow: sampleWorkflow(),
			Stages: []StageResponse{
				{ID: "r1", StageID: "s1", StageName: "Manager", Status: "Approved", CreatedAt: t0},
			},
		},
		cur: &CurrentStage{ID: "r2", StageID: "s2"},
	}
}

func TestDerive_UsesNestedWorkflow(t *testing.T) {
	r := newStubRemote()
	v := Derive(context.Background(), nil, r.req, *r.cur)

	if len(v.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(v.Stages))
	}
	want := []StageStatus{StatusApproved, StatusCurrent, StatusNotStarted}
	for i, s := range v.Stages {
		if s.Status != want[i] {
			t.Fatalf("stage %d: expected %q, got %q", i, want[i], s.Status)
		}
	}
	if !v.HasPercent || v.Percent.Label() != "33.33" {
		t.Fatalf("expected 33.33%%, got %q (has=%v)", v.Percent.Label(), v.HasPercent)
	}
}

func TestInMemoryLifecycle_LoadAndSubmit(t *testing.T) {
	ctx := context.Background()
	r := newStubRemote()
	metrics := &BasicMetrics{}

	lc, err := NewInMemoryLifecycleWithObserver(r, metrics)
	if err != nil {
		t.Fatalf("NewInMemoryLifecycleWithObserver failed: %v", err)
	}

	rv, err := lc.Load(ctx, "42")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rv.Stale || rv.Partial {
		t.Fatalf("expected a fresh view, got stale=%v partial=%v", rv.Stale, rv.Partial)
	}

	if err := lc.Submit(ctx, Completion{RequestID: "42", StageID: "s3", Action: ActionReject}); !errors.Is(err, ErrRejectNotAllowed) {
		t.Fatalf("expected ErrRejectNotAllowed for pass-through stage, got %v", err)
	}
	if err := lc.Submit(ctx, Completion{RequestID: "42", StageID: "s2", Action: ActionApprove}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := metrics.Snapshot(); got.SubmitsSucceeded != 1 {
		t.Fatalf("expected 1 successful submit, got %+v", got)
	}

	r.setFailing(true)
	rv, err = lc.Load(ctx, "42")
	if err != nil {
		t.Fatalf("Load with failing backend: %v", err)
	}
	if !rv.Stale {
		t.Fatalf("expected stale view from the post-submit snapshot")
	}
}

func TestInMemoryLifecycle_RequiresRemote(t *testing.T) {
	if _, err := NewInMemoryLifecycle(nil); err == nil {
		t.Fatalf("expected error without a remote")
	}
}
