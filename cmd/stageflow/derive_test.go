package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eduxora/stageflow/pkg/api"
)

const workflowYAML = `
id: 3
name: Payment voucher
stages:
  - id: 1
    name: Manager
    step: 0
    isRequireApproval: true
    assignee: {mode: requestor_department}
  - id: 2
    name: Finance
    step: 1
    isRequireApproval: true
    assignee: {mode: fixed, departmentId: 9, positionId: 4}
  - id: 5
    name: Dept Head
    isSubStage: true
    parentStageId: 1
    formFields: [10, 11]
`

const historyYAML = `
id: 42
requestorId: 7
status: Pending
stages:
  - id: 100
    stageId: 1
    stageName: Manager
    status: Approved
    createdAt: 2024-03-01T09:00:00Z
  - id: 101
    stageId: 5
    stageName: Dept Head
    parentStageId: 100
    status: Submitted
    createdAt: 2024-03-01T10:00:00Z
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDecodeDocument_NumericIDsAndAssignee(t *testing.T) {
	def, err := decodeDocument[api.WorkflowDefinition]([]byte(workflowYAML))
	if err != nil {
		t.Fatalf("decodeDocument failed: %v", err)
	}
	if def.ID != "3" || len(def.Stages) != 3 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	fixed, ok := def.Stages[1].Assignee.(api.FixedAssignee)
	if !ok || fixed.DepartmentID != "9" || fixed.PositionID != "4" {
		t.Fatalf("expected fixed assignee 9/4, got %#v", def.Stages[1].Assignee)
	}
	if _, ok := def.Stages[0].Assignee.(api.RequestorDepartmentAssignee); !ok {
		t.Fatalf("expected requestor department assignee, got %#v", def.Stages[0].Assignee)
	}
	if got := def.Stages[2].FormFields; len(got) != 2 || got[0] != "10" {
		t.Fatalf("expected stringified form fields, got %v", got)
	}
	if def.Stages[2].ParentStageID != "1" {
		t.Fatalf("expected parent 1, got %q", def.Stages[2].ParentStageID)
	}
}

func TestDecodeDocument_History(t *testing.T) {
	req, err := decodeDocument[api.WorkflowRequest]([]byte(historyYAML))
	if err != nil {
		t.Fatalf("decodeDocument failed: %v", err)
	}
	if req.ID != "42" || len(req.Stages) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Stages[1].ParentStageID != "100" {
		t.Fatalf("expected parent response 100, got %q", req.Stages[1].ParentStageID)
	}
	if req.Stages[0].CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be parsed")
	}
}

func TestDecodeDocument_FieldResponsesAreOpaque(t *testing.T) {
	doc := `
id: 42
stages:
  - id: 100
    stageId: 1
    status: Approved
    fieldResponses: {id: 7, vendorId: 12, lines: [{itemId: 3}]}
`
	req, err := decodeDocument[api.WorkflowRequest]([]byte(doc))
	if err != nil {
		t.Fatalf("decodeDocument failed: %v", err)
	}
	if req.Stages[0].StageID != "1" {
		t.Fatalf("expected stage id to be stringified, got %q", req.Stages[0].StageID)
	}

	var fields struct {
		ID       any `json:"id"`
		VendorID any `json:"vendorId"`
		Lines    []struct {
			ItemID any `json:"itemId"`
		} `json:"lines"`
	}
	if err := json.Unmarshal(req.Stages[0].FieldResponses, &fields); err != nil {
		t.Fatalf("unmarshal field responses: %v", err)
	}
	if fields.ID != float64(7) || fields.VendorID != float64(12) || fields.Lines[0].ItemID != float64(3) {
		t.Fatalf("expected numeric field responses untouched, got %s", req.Stages[0].FieldResponses)
	}
}

func TestDecodeDocument_InvalidAssignee(t *testing.T) {
	_, err := decodeDocument[api.WorkflowDefinition]([]byte(`{id: 1, stages: [{id: 1, assignee: {mode: fixed}}]}`))
	if err == nil {
		t.Fatalf("expected error for fixed assignee without department")
	}
}

func TestRunDerive_Text(t *testing.T) {
	deriveFlags.workflow = writeFile(t, "workflow.yaml", workflowYAML)
	deriveFlags.history = writeFile(t, "history.yaml", historyYAML)
	deriveFlags.current = "2"
	deriveFlags.currentResponse = ""
	deriveFlags.json = false
	t.Cleanup(func() { deriveFlags.workflow, deriveFlags.history, deriveFlags.current = "", "", "" })

	var out bytes.Buffer
	if err := runDerive(context.Background(), &out); err != nil {
		t.Fatalf("runDerive failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Request 42", "Manager", "Approved", "Finance", "Current", "Dept Head", "Submitted", "100.00%"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestRunDerive_JSON(t *testing.T) {
	deriveFlags.workflow = writeFile(t, "workflow.yaml", workflowYAML)
	deriveFlags.history = writeFile(t, "history.yaml", historyYAML)
	deriveFlags.current = ""
	deriveFlags.json = true
	t.Cleanup(func() {
		deriveFlags.workflow, deriveFlags.history = "", ""
		deriveFlags.json = false
	})

	var out bytes.Buffer
	if err := runDerive(context.Background(), &out); err != nil {
		t.Fatalf("runDerive failed: %v", err)
	}
	var view struct {
		Stages []struct {
			Status string `json:"status"`
		} `json:"stages"`
		Percent struct {
			Label string `json:"label"`
		} `json:"percent"`
	}
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(view.Stages) != 2 || view.Stages[1].Status != "Not Started" {
		t.Fatalf("unexpected stages: %+v", view.Stages)
	}
	if view.Percent.Label != "100.00" {
		t.Fatalf("expected label 100.00, got %q", view.Percent.Label)
	}
}

func TestRunDerive_RequiresDefinition(t *testing.T) {
	deriveFlags.workflow = ""
	deriveFlags.history = writeFile(t, "history.yaml", historyYAML)
	t.Cleanup(func() { deriveFlags.history = "" })

	if err := runDerive(context.Background(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error without a workflow definition")
	}
}
