package progress

import "github.com/eduxora/stageflow/pkg/api"

// ResponseIndex is a read-only view over a request's stage-response history,
// built once per derivation so that status lookups are O(1).
type ResponseIndex struct {
	history []api.StageResponse

	// byStage holds the position of the latest response per StageID.
	byStage map[string]int
	byID    map[string]int
	// children holds, per parent response id, the positions of sub-stage
	// responses in history order.
	children map[string][]int
}

// NewResponseIndex indexes history. history is not copied and must not be
// modified while the index is in use.
//
// When several responses share a StageID, the one with the latest CreatedAt
// wins; equal timestamps resolve to the later entry in history.
func NewResponseIndex(history []api.StageResponse) *ResponseIndex {
	ix := &ResponseIndex{
		history:  history,
		byStage:  make(map[string]int, len(history)),
		byID:     make(map[string]int, len(history)),
		children: make(map[string][]int),
	}
	for i, r := range history {
		if prev, ok := ix.byStage[r.StageID]; !ok || !history[prev].CreatedAt.After(r.CreatedAt) {
			ix.byStage[r.StageID] = i
		}
		if r.ID != "" {
			ix.byID[r.ID] = i
		}
		if r.ParentStageID != "" {
			ix.children[r.ParentStageID] = append(ix.children[r.ParentStageID], i)
		}
	}
	return ix
}

// Len returns the number of history entries.
func (ix *ResponseIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.history)
}

// Lookup returns the latest response recorded for stageID.
func (ix *ResponseIndex) Lookup(stageID string) (api.StageResponse, bool) {
	if ix == nil || stageID == "" {
		return api.StageResponse{}, false
	}
	i, ok := ix.byStage[stageID]
	if !ok {
		return api.StageResponse{}, false
	}
	return ix.history[i], true
}

// HasResponseID reports whether a response with the given id exists.
func (ix *ResponseIndex) HasResponseID(id string) bool {
	if ix == nil || id == "" {
		return false
	}
	_, ok := ix.byID[id]
	return ok
}

// childrenOf returns the sub-stage responses recorded against the parent
// response id, in history order.
func (ix *ResponseIndex) childrenOf(responseID string) []api.StageResponse {
	if ix == nil || responseID == "" {
		return nil
	}
	pos := ix.children[responseID]
	out := make([]api.StageResponse, len(pos))
	for i, p := range pos {
		out[i] = ix.history[p]
	}
	return out
}
