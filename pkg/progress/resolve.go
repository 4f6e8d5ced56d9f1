package progress

import "github.com/eduxora/stageflow/pkg/api"

// SubStageView is the latest attempt of one named sub-stage under a parent.
type SubStageView struct {
	Response api.StageResponse `json:"response"`
	Status   StageStatus       `json:"status"`
	// Attempts counts every recorded attempt with the same name, the
	// shown one included.
	Attempts int `json:"attempts"`
}

// ResolveStageStatus returns the display status of a top-level stage.
//
// The current stage is always StatusCurrent, even when an earlier attempt
// on the same stage id is recorded. Otherwise the status of the matching
// response is returned, or StatusNotStarted when there is none.
func ResolveStageStatus(stage api.Stage, idx *ResponseIndex, current api.CurrentStage) StageStatus {
	if current.StageID != "" && stage.ID == current.StageID {
		return StatusCurrent
	}
	if r, ok := idx.Lookup(stage.ID); ok {
		return StatusOf(r.Status)
	}
	return StatusNotStarted
}

// ResolveSubStages returns the sub-stage attempts recorded under parent.
//
// Sub-stage responses point at the parent's response id (the instance that
// spawned them), not at the parent template id. Responses are grouped by
// StageName and only the latest CreatedAt of each group is kept, so an
// internal loop shows its most recent attempt. Groups are ordered by first
// appearance in history.
//
// The result is empty when the parent has no response yet.
func ResolveSubStages(parent api.Stage, idx *ResponseIndex, current api.CurrentStage) []SubStageView {
	main, ok := idx.Lookup(parent.ID)
	if !ok || main.ID == "" {
		return nil
	}
	children := idx.childrenOf(main.ID)
	if len(children) == 0 {
		return nil
	}

	order := make([]string, 0, len(children))
	latest := make(map[string]int, len(children))
	attempts := make(map[string]int, len(children))
	for i, r := range children {
		attempts[r.StageName]++
		prev, seen := latest[r.StageName]
		if !seen {
			order = append(order, r.StageName)
			latest[r.StageName] = i
			continue
		}
		if !children[prev].CreatedAt.After(r.CreatedAt) {
			latest[r.StageName] = i
		}
	}

	out := make([]SubStageView, 0, len(order))
	for _, name := range order {
		r := children[latest[name]]
		out = append(out, SubStageView{
			Response: r,
			Status:   subStageStatus(r, current),
			Attempts: attempts[name],
		})
	}
	return out
}

func subStageStatus(r api.StageResponse, current api.CurrentStage) StageStatus {
	if current.ID != "" && r.ID == current.ID {
		return StatusCurrent
	}
	if current.StageID != "" && r.StageID == current.StageID {
		return StatusCurrent
	}
	return StatusOf(r.Status)
}
