package progress

import (
	"cmp"
	"slices"

	"github.com/eduxora/stageflow/pkg/api"
)

// OrderTopLevelStages returns the stages of def that are not sub-stages,
// sorted ascending by Step. Equal steps keep declaration order.
//
// The returned slice is a copy; def is never modified.
func OrderTopLevelStages(def *api.WorkflowDefinition) []api.Stage {
	if def == nil {
		return nil
	}
	out := make([]api.Stage, 0, len(def.Stages))
	for _, s := range def.Stages {
		if !s.IsSubStage {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b api.Stage) int {
		return cmp.Compare(a.Step, b.Step)
	})
	return out
}
