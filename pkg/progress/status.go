package progress

import "github.com/eduxora/stageflow/pkg/api"

// StageStatus is the display status of a stage or sub-stage.
type StageStatus string

const (
	// StatusNotStarted means no response exists and the stage is not current.
	StatusNotStarted StageStatus = "Not Started"
	// StatusCurrent marks the stage the request is awaiting action on.
	// It overrides any recorded response for the same stage.
	StatusCurrent StageStatus = "Current"

	StatusApproved    = StageStatus(api.ResponseApproved)
	StatusRejected    = StageStatus(api.ResponseRejected)
	StatusSubmitted   = StageStatus(api.ResponseSubmitted)
	StatusUnderReview = StageStatus(api.ResponseUnderReview)
	StatusPending     = StageStatus(api.ResponsePending)
)

// StatusOf maps a recorded response status to a display status.
// An empty status counts as not started.
func StatusOf(rs api.ResponseStatus) StageStatus {
	if rs == "" {
		return StatusNotStarted
	}
	return StageStatus(rs)
}

// Started reports whether the stage has been reached.
func (s StageStatus) Started() bool {
	return s != StatusNotStarted && s != ""
}
