package progress

import (
	"errors"
	"fmt"

	"github.com/eduxora/stageflow/pkg/api"
)

// Validate checks the referential integrity of def. It returns nil or an
// error joining one *api.DataIntegrityError per problem.
func Validate(def *api.WorkflowDefinition) error {
	issues := validateDefinition(def)
	if len(issues) == 0 {
		return nil
	}
	errs := make([]error, len(issues))
	for i, d := range issues {
		errs[i] = d
	}
	return errors.Join(errs...)
}

func validateDefinition(def *api.WorkflowDefinition) []*api.DataIntegrityError {
	if def == nil {
		return nil
	}
	issues := append([]*api.DataIntegrityError(nil), def.Issues...)
	report := func(stageID, format string, args ...any) {
		issues = append(issues, &api.DataIntegrityError{
			WorkflowID: def.ID,
			StageID:    stageID,
			Reason:     fmt.Sprintf(format, args...),
		})
	}

	byID := make(map[string]api.Stage, len(def.Stages))
	steps := make(map[int]string)
	for _, s := range def.Stages {
		if _, dup := byID[s.ID]; dup {
			report(s.ID, "duplicate stage id")
			continue
		}
		byID[s.ID] = s
		if s.IsSubStage {
			continue
		}
		if other, dup := steps[s.Step]; dup {
			report(s.ID, "step %d already used by stage %s", s.Step, other)
			continue
		}
		steps[s.Step] = s.ID
	}

	for _, s := range def.Stages {
		if !s.IsSubStage {
			continue
		}
		if s.ParentStageID == "" {
			report(s.ID, "sub-stage has no parent")
			continue
		}
		parent, ok := byID[s.ParentStageID]
		switch {
		case !ok:
			report(s.ID, "parent stage %s does not exist", s.ParentStageID)
		case parent.IsSubStage:
			report(s.ID, "parent stage %s is itself a sub-stage", s.ParentStageID)
		}
	}
	return issues
}

// validateHistory reports responses that cannot be placed in def: top-level
// responses for unknown stages and sub-stage responses whose parent
// response is missing.
func validateHistory(def *api.WorkflowDefinition, idx *ResponseIndex) []*api.DataIntegrityError {
	if def == nil || idx == nil {
		return nil
	}
	known := make(map[string]struct{}, len(def.Stages))
	for _, s := range def.Stages {
		known[s.ID] = struct{}{}
	}

	var issues []*api.DataIntegrityError
	for _, r := range idx.history {
		if r.ParentStageID != "" {
			if !idx.HasResponseID(r.ParentStageID) {
				issues = append(issues, &api.DataIntegrityError{
					WorkflowID: def.ID,
					StageID:    r.StageID,
					Reason:     fmt.Sprintf("response %s references missing parent response %s", r.ID, r.ParentStageID),
				})
			}
			continue
		}
		if _, ok := known[r.StageID]; !ok {
			issues = append(issues, &api.DataIntegrityError{
				WorkflowID: def.ID,
				StageID:    r.StageID,
				Reason:     fmt.Sprintf("response %s references unknown stage", r.ID),
			})
		}
	}
	return issues
}
