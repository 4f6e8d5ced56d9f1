package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

func TestInMemorySnapshotStore_Contract(t *testing.T) {
	runSnapshotStoreContract(t, NewInMemorySnapshotStore(), "mem-")
}

func TestInMemorySnapshotStore_DoesNotAliasCallerData(t *testing.T) {
	store := NewInMemorySnapshotStore()
	ctx := context.Background()

	req := sampleRequest("r1")
	if err := store.SaveRequest(ctx, req, time.Now()); err != nil {
		t.Fatalf("SaveRequest failed: %v", err)
	}
	req.Stages[0].Status = api.ResponseRejected

	snap, err := store.GetSnapshot(ctx, "r1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if snap.Request.Stages[0].Status != api.ResponseApproved {
		t.Fatalf("stored snapshot mutated through caller pointer: %q", snap.Request.Stages[0].Status)
	}
}

func TestInMemoryEventStore_AppendAndList(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	for _, typ := range []api.EventType{api.EventSubmissionStarted, api.EventSubmissionCompleted} {
		if err := store.AppendEvent(ctx, api.RequestEvent{RequestID: "r1", Type: typ, StageID: "2"}); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}
	if err := store.AppendEvent(ctx, api.RequestEvent{RequestID: "other", Type: api.EventFetchFailed}); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	events, err := store.ListEvents(ctx, "r1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != api.EventSubmissionStarted || events[1].Type != api.EventSubmissionCompleted {
		t.Fatalf("unexpected order: %+v", events)
	}
	if events[0].ID == "" || events[0].At.IsZero() {
		t.Fatalf("expected id and timestamp to be stamped, got %+v", events[0])
	}
	if events[0].ID == events[1].ID {
		t.Fatalf("expected distinct ids, got %q twice", events[0].ID)
	}
}
