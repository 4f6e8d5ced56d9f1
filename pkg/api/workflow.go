package api

import (
	"encoding/json"
	"fmt"
)

// Stage is one node of a workflow definition.
//
// Top-level stages are ordered by Step. Sub-stages (IsSubStage == true) have
// no independent ordering; they hang off ParentStageID and are ordered by
// the history that records them.
type Stage struct {
	ID            string
	Name          string
	Step          int
	IsSubStage    bool
	ParentStageID string

	// Assignee is nil when the definition does not say who acts on the stage.
	Assignee Assignee

	// IsRequireApproval gates approve/reject semantics. Pass-through stages
	// can only be submitted (approved).
	IsRequireApproval bool

	// FormFields and FormSections are visibility keys into the form
	// definition. They are carried, never interpreted.
	FormFields   []string
	FormSections []string
}

// stageJSON is the serialized form of Stage. The assignee variant is
// flattened into AssigneeSpec.
type stageJSON struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Step              int           `json:"step"`
	IsSubStage        bool          `json:"isSubStage"`
	ParentStageID     string        `json:"parentStageId,omitempty"`
	Assignee          *AssigneeSpec `json:"assignee,omitempty"`
	IsRequireApproval bool          `json:"isRequireApproval"`
	FormFields        []string      `json:"formFields,omitempty"`
	FormSections      []string      `json:"formSections,omitempty"`
}

func (s Stage) MarshalJSON() ([]byte, error) {
	out := stageJSON{
		ID:                s.ID,
		Name:              s.Name,
		Step:              s.Step,
		IsSubStage:        s.IsSubStage,
		ParentStageID:     s.ParentStageID,
		IsRequireApproval: s.IsRequireApproval,
		FormFields:        s.FormFields,
		FormSections:      s.FormSections,
	}
	if s.Assignee != nil {
		spec := SpecOf(s.Assignee)
		out.Assignee = &spec
	}
	return json.Marshal(out)
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var in stageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Stage{
		ID:                in.ID,
		Name:              in.Name,
		Step:              in.Step,
		IsSubStage:        in.IsSubStage,
		ParentStageID:     in.ParentStageID,
		IsRequireApproval: in.IsRequireApproval,
		FormFields:        in.FormFields,
		FormSections:      in.FormSections,
	}
	if in.Assignee != nil {
		a, err := in.Assignee.Assignee()
		if err != nil {
			return fmt.Errorf("stage %s: %w", in.ID, err)
		}
		s.Assignee = a
	}
	return nil
}

// WorkflowDefinition is the ordered list of stage templates owned by the
// organization.
//
// Every ParentStageID referenced by a sub-stage must match the ID of a
// top-level stage in the same definition.
type WorkflowDefinition struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`

	// Issues holds problems found while decoding the definition, such as a
	// stage with conflicting assignee modes whose Assignee was dropped.
	Issues []*DataIntegrityError `json:"issues,omitempty"`
}

// StageByID returns the stage with the given id.
func (d *WorkflowDefinition) StageByID(id string) (Stage, bool) {
	if d == nil {
		return Stage{}, false
	}
	for _, s := range d.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// TopLevelCount returns the number of stages that are not sub-stages.
func (d *WorkflowDefinition) TopLevelCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, s := range d.Stages {
		if !s.IsSubStage {
			n++
		}
	}
	return n
}
