package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

// wireID accepts ids encoded as JSON strings or numbers.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

// wireStage mirrors the backend stage shape, where the assignee mode is
// spread over independently optional fields.
type wireStage struct {
	ID                    wireID   `json:"id"`
	Name                  string   `json:"name"`
	Step                  int      `json:"step"`
	IsSubStage            bool     `json:"isSubStage"`
	ParentStageID         wireID   `json:"parentStageId"`
	IsRequestor           bool     `json:"isRequestor"`
	IsRequestorDepartment bool     `json:"isRequestorDepartment"`
	AssigneeDepartmentID  wireID   `json:"assigneeDepartmentId"`
	AssigneePositionID    wireID   `json:"assigneePositionId"`
	AssigneeLookupField   string   `json:"assigineeLookupField"`
	IsRequireApproval     bool     `json:"isRequireApproval"`
	FormFields            []wireID `json:"formFields"`
	FormSections          []wireID `json:"formSections"`
}

type wireWorkflow struct {
	ID     wireID      `json:"id"`
	Name   string      `json:"name"`
	Stages []wireStage `json:"stages"`
}

type wireStageResponse struct {
	ID             wireID          `json:"id"`
	StageID        wireID          `json:"stageId"`
	StageName      string          `json:"stageName"`
	ParentStageID  wireID          `json:"parentStageId"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Comment        string          `json:"comment"`
	FieldResponses json.RawMessage `json:"fieldResponses"`
}

type wireRequest struct {
	ID               wireID              `json:"id"`
	WorkflowID       wireID              `json:"workflowId"`
	RequestorID      wireID              `json:"requestorId"`
	Status           string              `json:"status"`
	Stages           []wireStageResponse `json:"stages"`
	CurrentStageStep int                 `json:"currentStageStep"`
	Workflow         *wireWorkflow       `json:"workflow"`
}

type wireCurrentStage struct {
	ID               wireID     `json:"id"`
	StageID          wireID     `json:"stageId"`
	Status           string     `json:"status"`
	AssignedToUserID wireID     `json:"assignedToUserId"`
	Stage            *wireStage `json:"stage"`
}

type wireNextStage struct {
	CurrentStage *wireCurrentStage `json:"currentStage"`
}

type wireCompletion struct {
	StageID        string          `json:"stageId"`
	Action         api.Action      `json:"action"`
	Comment        string          `json:"comment"`
	FieldResponses json.RawMessage `json:"fieldResponses,omitempty"`
}

// toDomain keeps a stage whose assignee fields conflict, with a nil
// Assignee, and returns the problem as an issue.
func (w wireStage) toDomain(workflowID string) (api.Stage, *api.DataIntegrityError) {
	s := api.Stage{
		ID:                string(w.ID),
		Name:              w.Name,
		Step:              w.Step,
		IsSubStage:        w.IsSubStage,
		ParentStageID:     string(w.ParentStageID),
		IsRequireApproval: w.IsRequireApproval,
		FormFields:        idStrings(w.FormFields),
		FormSections:      idStrings(w.FormSections),
	}
	a, err := w.assignee()
	if err != nil {
		return s, &api.DataIntegrityError{WorkflowID: workflowID, StageID: s.ID, Reason: err.Error()}
	}
	s.Assignee = a
	return s, nil
}

// assignee folds the optional fields into the tagged variant. More than one
// mode set at once is a contract violation.
func (w wireStage) assignee() (api.Assignee, error) {
	var modes []api.Assignee
	if w.IsRequestor {
		modes = append(modes, api.RequestorAssignee{})
	}
	if w.IsRequestorDepartment {
		modes = append(modes, api.RequestorDepartmentAssignee{})
	}
	if w.AssigneeDepartmentID != "" {
		modes = append(modes, api.FixedAssignee{
			DepartmentID: string(w.AssigneeDepartmentID),
			PositionID:   string(w.AssigneePositionID),
		})
	} else if w.AssigneePositionID != "" {
		return nil, fmt.Errorf("assignee position %s without department", w.AssigneePositionID)
	}
	if w.AssigneeLookupField != "" {
		modes = append(modes, api.LookupFieldAssignee{Key: w.AssigneeLookupField})
	}

	switch len(modes) {
	case 0:
		return nil, nil
	case 1:
		return modes[0], nil
	default:
		kinds := make([]api.AssigneeKind, len(modes))
		for i, m := range modes {
			kinds[i] = m.Kind()
		}
		return nil, fmt.Errorf("conflicting assignee modes %v", kinds)
	}
}

func (w *wireWorkflow) toDomain() *api.WorkflowDefinition {
	if w == nil {
		return nil
	}
	def := &api.WorkflowDefinition{
		ID:     string(w.ID),
		Name:   w.Name,
		Stages: make([]api.Stage, 0, len(w.Stages)),
	}
	for _, ws := range w.Stages {
		s, issue := ws.toDomain(def.ID)
		if issue != nil {
			def.Issues = append(def.Issues, issue)
		}
		def.Stages = append(def.Stages, s)
	}
	return def
}

func (w wireRequest) toDomain() *api.WorkflowRequest {
	req := &api.WorkflowRequest{
		ID:               string(w.ID),
		WorkflowID:       string(w.WorkflowID),
		RequestorID:      string(w.RequestorID),
		Status:           api.ResponseStatus(w.Status),
		CurrentStageStep: w.CurrentStageStep,
		Stages:           make([]api.StageResponse, 0, len(w.Stages)),
	}
	for _, r := range w.Stages {
		req.Stages = append(req.Stages, api.StageResponse{
			ID:             string(r.ID),
			StageID:        string(r.StageID),
			StageName:      r.StageName,
			ParentStageID:  string(r.ParentStageID),
			Status:         api.ResponseStatus(r.Status),
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
			Comment:        r.Comment,
			FieldResponses: r.FieldResponses,
		})
	}
	def := w.Workflow.toDomain()
	req.Workflow = def
	if req.WorkflowID == "" && def != nil {
		req.WorkflowID = def.ID
	}
	return req
}

// toDomain drops a conflicting assignee of the nested stage; the same stage
// is reported through the workflow definition.
func (w *wireCurrentStage) toDomain() *api.CurrentStage {
	if w == nil {
		return &api.CurrentStage{}
	}
	cur := &api.CurrentStage{
		ID:               string(w.ID),
		StageID:          string(w.StageID),
		Status:           api.ResponseStatus(w.Status),
		AssignedToUserID: string(w.AssignedToUserID),
	}
	if w.Stage != nil {
		s, _ := w.Stage.toDomain("")
		cur.Stage = &s
		if cur.StageID == "" {
			cur.StageID = s.ID
		}
	}
	return cur
}

func idStrings(ids []wireID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
