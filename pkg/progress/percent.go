package progress

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/eduxora/stageflow/pkg/api"
)

// Percent is a completion ratio clamped to [0, 100]. The label and the bar
// width are both derived from it so they cannot disagree.
type Percent struct {
	value float64
}

// NewPercent clamps v (in percent) to [0, 100].
func NewPercent(v float64) Percent {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return Percent{value: v}
}

// Value returns the percentage in [0, 100].
func (p Percent) Value() float64 {
	return p.value
}

// Label renders the percentage with two decimals, e.g. "66.67".
func (p Percent) Label() string {
	return strconv.FormatFloat(p.value, 'f', 2, 64)
}

// Width returns the percentage as an integer bar width.
func (p Percent) Width() int {
	return int(math.Round(p.value))
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value float64 `json:"value"`
		Label string  `json:"label"`
		Width int     `json:"width"`
	}{p.value, p.Label(), p.Width()})
}

// ComputeCompletionPercent returns the number of recorded responses divided
// by the number of top-level stages. Sub-stages never count in the
// denominator.
//
// ok is false when def has no top-level stages; the progress bar is then
// not displayed at all.
func ComputeCompletionPercent(req *api.WorkflowRequest, def *api.WorkflowDefinition) (p Percent, ok bool) {
	total := def.TopLevelCount()
	if total == 0 {
		return Percent{}, false
	}
	done := 0
	if req != nil {
		done = len(req.Stages)
	}
	return NewPercent(float64(done) / float64(total) * 100), true
}
