package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduxora/stageflow/pkg/api"
)

const processingBody = `{
  "data": [{
    "id": 42,
    "requestorId": 7,
    "status": "Pending",
    "currentStageStep": 1,
    "stages": [
      {"id": 100, "stageId": 1, "stageName": "Manager", "status": "Approved", "createdAt": "2024-03-01T09:00:00Z"},
      {"id": 101, "stageId": 5, "stageName": "Dept Head", "parentStageId": 100, "status": "Submitted", "createdAt": "2024-03-01T10:00:00Z"}
    ],
    "workflow": {
      "id": 3,
      "name": "Payment voucher",
      "stages": [
        {"id": 1, "name": "Manager", "step": 0, "isRequestorDepartment": true, "isRequireApproval": true},
        {"id": 2, "name": "Finance", "step": 1, "assigneeDepartmentId": 9, "assigneePositionId": 4, "isRequireApproval": true},
        {"id": 5, "name": "Dept Head", "isSubStage": true, "parentStageId": 1, "assigineeLookupField": "approver"}
      ]
    }
  }]
}`

func TestClient_FetchRequest_DecodesEnvelopeAndAssignees(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, processingPath, r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, processingBody)
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("secret"))
	req, err := c.FetchRequest(context.Background(), "42")
	require.NoError(t, err)

	require.Equal(t, "42", gotBody["id"])
	require.Equal(t, "42", req.ID)
	require.Equal(t, "3", req.WorkflowID)
	require.Len(t, req.Stages, 2)
	require.Equal(t, "100", req.Stages[1].ParentStageID)
	require.Equal(t, api.ResponseSubmitted, req.Stages[1].Status)

	require.NotNil(t, req.Workflow)
	stages := req.Workflow.Stages
	require.Len(t, stages, 3)
	require.Equal(t, api.RequestorDepartmentAssignee{}, stages[0].Assignee)
	require.Equal(t, api.FixedAssignee{DepartmentID: "9", PositionID: "4"}, stages[1].Assignee)
	require.Equal(t, api.LookupFieldAssignee{Key: "approver"}, stages[2].Assignee)
}

func TestClient_FetchRequest_BareObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"abc","stages":[]}`)
	}))
	defer srv.Close()

	req, err := New(srv.URL).FetchRequest(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", req.ID)
	require.Nil(t, req.Workflow)
}

func TestClient_FetchRequest_NotInList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchRequest(context.Background(), "42")
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestClient_FetchRequest_ConflictingAssigneeIsReportedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":42,"workflow":{"id":9,"stages":[
			{"id":1,"name":"Manager","step":0,"isRequestorDepartment":true},
			{"id":2,"name":"Finance","step":1,"isRequestor":true,"assigneeDepartmentId":5}
		]}}`)
	}))
	defer srv.Close()

	req, err := New(srv.URL).FetchRequest(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, req.Workflow)

	stages := req.Workflow.Stages
	require.Len(t, stages, 2)
	require.Equal(t, api.RequestorDepartmentAssignee{}, stages[0].Assignee)
	require.Equal(t, "Finance", stages[1].Name)
	require.Nil(t, stages[1].Assignee)

	require.Len(t, req.Workflow.Issues, 1)
	issue := req.Workflow.Issues[0]
	require.Equal(t, "9", issue.WorkflowID)
	require.Equal(t, "2", issue.StageID)
	require.True(t, errors.Is(issue, api.ErrDataIntegrity))
}

func TestClient_FetchCurrentStage_ConflictingAssigneeIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"currentStage":{"id":555,"stage":{"id":2,"isRequestor":true,"assigineeLookupField":"x"}}}`)
	}))
	defer srv.Close()

	cur, err := New(srv.URL).FetchCurrentStage(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "2", cur.StageID)
	require.NotNil(t, cur.Stage)
	require.Nil(t, cur.Stage.Assignee)
}

func TestClient_FetchCurrentStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, nextStagePath+"42", r.URL.Path)
		_, _ = io.WriteString(w, `{"currentStage":{"id":555,"status":"Pending","assignedToUserId":8,"stage":{"id":2,"name":"Finance","step":1,"isRequireApproval":true}}}`)
	}))
	defer srv.Close()

	cur, err := New(srv.URL).FetchCurrentStage(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, "555", cur.ID)
	// StageID falls back to the nested stage.
	require.Equal(t, "2", cur.StageID)
	require.Equal(t, "8", cur.AssignedToUserID)
	require.NotNil(t, cur.Stage)
	require.True(t, cur.Stage.IsRequireApproval)
}

func TestClient_FetchCurrentStage_ClosedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"currentStage":null}`)
	}))
	defer srv.Close()

	cur, err := New(srv.URL).FetchCurrentStage(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, cur.IsZero())
}

func TestClient_CompleteStage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, completePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := New(srv.URL).CompleteStage(context.Background(), api.Completion{
		RequestID:      "42",
		StageID:        "555",
		Action:         api.ActionReject,
		Comment:        "missing receipt",
		FieldResponses: json.RawMessage(`{"amount":10}`),
	})
	require.NoError(t, err)
	require.Equal(t, "555", got["stageId"])
	require.Equal(t, "Reject", got["action"])
	require.Equal(t, "missing receipt", got["comment"])
	require.Equal(t, map[string]any{"amount": float64(10)}, got["fieldResponses"])
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stage already completed", http.StatusConflict)
	}))
	defer srv.Close()

	err := New(srv.URL).CompleteStage(context.Background(), api.Completion{StageID: "1", Action: api.ActionApprove})
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusConflict))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "stage already completed", se.Body)
}

func TestClient_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_, _ = io.WriteString(w, `{"currentStage":null}`)
	}))
	defer srv.Close()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	_, err = New(srv.URL).FetchCurrentStage(ctx, "42")
	require.NoError(t, err)
	require.Contains(t, traceparent, traceID.String())
}
