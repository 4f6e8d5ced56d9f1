package api

import (
	"encoding/json"
	"time"
)

// ResponseStatus is the recorded outcome of one stage instance.
type ResponseStatus string

const (
	ResponseApproved    ResponseStatus = "Approved"
	ResponseRejected    ResponseStatus = "Rejected"
	ResponseSubmitted   ResponseStatus = "Submitted"
	ResponseUnderReview ResponseStatus = "Under Review"
	ResponsePending     ResponseStatus = "Pending"
)

// Valid reports whether s is one of the known response statuses.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseApproved, ResponseRejected, ResponseSubmitted, ResponseUnderReview, ResponsePending:
		return true
	}
	return false
}

// StageResponse is one history record of a stage (or sub-stage) instance
// being acted on for a request.
type StageResponse struct {
	// ID identifies this response instance. Sub-stage responses reference
	// it through ParentStageID.
	ID        string `json:"id"`
	StageID   string `json:"stageId"`
	StageName string `json:"stageName"`

	// ParentStageID is set for sub-stage responses and holds the ID of the
	// parent stage's response, not the parent template id.
	ParentStageID string `json:"parentStageId,omitempty"`

	Status    ResponseStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	Comment        string          `json:"comment,omitempty"`
	FieldResponses json.RawMessage `json:"fieldResponses,omitempty"`
}

// IsSubStage reports whether the response belongs to a sub-stage.
func (r StageResponse) IsSubStage() bool {
	return r.ParentStageID != ""
}

// WorkflowRequest is one submitted request traversing a workflow.
//
// Stages is an append-only history. Nothing in this module mutates it.
type WorkflowRequest struct {
	ID               string          `json:"id"`
	WorkflowID       string          `json:"workflowId"`
	RequestorID      string          `json:"requestorId"`
	Status           ResponseStatus  `json:"status"`
	Stages           []StageResponse `json:"stages"`
	CurrentStageStep int             `json:"currentStageStep"`

	// Workflow is the definition nested in the processing response. It may
	// be nil when only the history was fetched.
	Workflow *WorkflowDefinition `json:"workflow,omitempty"`
}

// CurrentStage is the authoritative "what's next" pointer reported by the
// backend. The zero value means the request has no pending stage.
type CurrentStage struct {
	// ID is the pending stage-response instance id.
	ID string `json:"id,omitempty"`
	// StageID is the stage template id.
	StageID          string         `json:"stageId,omitempty"`
	Status           ResponseStatus `json:"status,omitempty"`
	AssignedToUserID string         `json:"assignedToUserId,omitempty"`
	Stage            *Stage         `json:"stage,omitempty"`
}

// CurrentAt returns a pointer for the given stage template id.
func CurrentAt(stageID string) CurrentStage {
	return CurrentStage{StageID: stageID}
}

// IsZero reports whether no stage is pending.
func (c CurrentStage) IsZero() bool {
	return c.ID == "" && c.StageID == ""
}

// Action is the decision an assignee submits for a stage.
type Action string

const (
	ActionApprove Action = "Approve"
	ActionReject  Action = "Reject"
)

// Valid reports whether a is Approve or Reject.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// Completion is a stage decision submitted for a request.
type Completion struct {
	RequestID      string          `json:"requestId"`
	StageID        string          `json:"stageId"`
	Action         Action          `json:"action"`
	Comment        string          `json:"comment,omitempty"`
	FieldResponses json.RawMessage `json:"fieldResponses,omitempty"`
}

// Snapshot holds the last successfully fetched data for one request.
// Either part may be missing.
type Snapshot struct {
	RequestID string

	Request   *WorkflowRequest
	RequestAt time.Time

	Current   *CurrentStage
	CurrentAt time.Time
}
