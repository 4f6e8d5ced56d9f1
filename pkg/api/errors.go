package api

import (
	"errors"
	"fmt"
)

var (
	// ErrDataIntegrity is matched by every *DataIntegrityError.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrInvalidAction is returned for decisions other than Approve/Reject.
	ErrInvalidAction = errors.New("invalid action")
)

// DataIntegrityError reports workflow or history data that violates the
// external data contract, such as a sub-stage whose parent does not exist.
// It is reported, never fatal.
type DataIntegrityError struct {
	WorkflowID string `json:"workflowId"`
	StageID    string `json:"stageId,omitempty"`
	Reason     string `json:"reason"`
}

func (e *DataIntegrityError) Error() string {
	if e.StageID == "" {
		return fmt.Sprintf("workflow %s: %s", e.WorkflowID, e.Reason)
	}
	return fmt.Sprintf("workflow %s: stage %s: %s", e.WorkflowID, e.StageID, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// IsDataIntegrityError returns the first *DataIntegrityError in err's tree.
func IsDataIntegrityError(err error) (*DataIntegrityError, bool) {
	var d *DataIntegrityError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
