package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

func sampleRequest(id string) *api.WorkflowRequest {
	return &api.WorkflowRequest{
		ID:         id,
		WorkflowID: "wf-1",
		Status:     api.ResponsePending,
		Stages: []api.StageResponse{
			{ID: "r1", StageID: "1", StageName: "Manager", Status: api.ResponseApproved,
				CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		},
		Workflow: &api.WorkflowDefinition{
			ID:   "wf-1",
			Name: "Payment voucher",
			Stages: []api.Stage{
				{ID: "1", Name: "Manager", Step: 0, Assignee: api.RequestorDepartmentAssignee{}, IsRequireApproval: true},
				{ID: "2", Name: "Finance", Step: 1, Assignee: api.FixedAssignee{DepartmentID: "9"}},
			},
		},
	}
}

// runSnapshotStoreContract exercises the behavior every SnapshotStore shares.
// ids are prefixed so backends that are not reset between tests stay isolated.
func runSnapshotStoreContract(t *testing.T, store SnapshotStore, prefix string) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetSnapshot(ctx, prefix+"missing")
		if !errors.Is(err, ErrSnapshotNotFound) {
			t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("request only", func(t *testing.T) {
		id := prefix + "req-only"
		if err := store.SaveRequest(ctx, sampleRequest(id), at); err != nil {
			t.Fatalf("SaveRequest failed: %v", err)
		}
		snap, err := store.GetSnapshot(ctx, id)
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if snap.Request == nil || snap.Request.ID != id {
			t.Fatalf("unexpected request: %+v", snap.Request)
		}
		if !snap.RequestAt.Equal(at) {
			t.Fatalf("expected RequestAt %v, got %v", at, snap.RequestAt)
		}
		if snap.Current != nil || !snap.CurrentAt.IsZero() {
			t.Fatalf("expected no current stage, got %+v at %v", snap.Current, snap.CurrentAt)
		}
		if len(snap.Request.Stages) != 1 || snap.Request.Stages[0].Status != api.ResponseApproved {
			t.Fatalf("unexpected history: %+v", snap.Request.Stages)
		}
		if _, ok := snap.Request.Workflow.Stages[1].Assignee.(api.FixedAssignee); !ok {
			t.Fatalf("assignee variant lost: %#v", snap.Request.Workflow.Stages[1].Assignee)
		}
	})

	t.Run("halves are independent", func(t *testing.T) {
		id := prefix + "both"
		if err := store.SaveRequest(ctx, sampleRequest(id), at); err != nil {
			t.Fatalf("SaveRequest failed: %v", err)
		}
		later := at.Add(time.Minute)
		cur := &api.CurrentStage{ID: "555", StageID: "2", Status: api.ResponsePending}
		if err := store.SaveCurrentStage(ctx, id, cur, later); err != nil {
			t.Fatalf("SaveCurrentStage failed: %v", err)
		}

		snap, err := store.GetSnapshot(ctx, id)
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if snap.Request == nil || !snap.RequestAt.Equal(at) {
			t.Fatalf("request half overwritten: %+v at %v", snap.Request, snap.RequestAt)
		}
		if snap.Current == nil || snap.Current.StageID != "2" || !snap.CurrentAt.Equal(later) {
			t.Fatalf("unexpected current half: %+v at %v", snap.Current, snap.CurrentAt)
		}
	})

	t.Run("closed request keeps empty pointer", func(t *testing.T) {
		id := prefix + "closed"
		if err := store.SaveCurrentStage(ctx, id, &api.CurrentStage{}, at); err != nil {
			t.Fatalf("SaveCurrentStage failed: %v", err)
		}
		snap, err := store.GetSnapshot(ctx, id)
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if snap.Current == nil || !snap.Current.IsZero() {
			t.Fatalf("expected zero current stage, got %+v", snap.Current)
		}
		if snap.Request != nil {
			t.Fatalf("expected no request half, got %+v", snap.Request)
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		id := prefix + "gone"
		if err := store.SaveRequest(ctx, sampleRequest(id), at); err != nil {
			t.Fatalf("SaveRequest failed: %v", err)
		}
		if err := store.Invalidate(ctx, id); err != nil {
			t.Fatalf("Invalidate failed: %v", err)
		}
		if _, err := store.GetSnapshot(ctx, id); !errors.Is(err, ErrSnapshotNotFound) {
			t.Fatalf("expected ErrSnapshotNotFound after Invalidate, got %v", err)
		}
		if err := store.Invalidate(ctx, id); err != nil {
			t.Fatalf("second Invalidate failed: %v", err)
		}
	})
}
