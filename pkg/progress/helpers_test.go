package progress

import (
	"time"

	"github.com/eduxora/stageflow/pkg/api"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func twoStageWorkflow() *api.WorkflowDefinition {
	return &api.WorkflowDefinition{
		ID:   "wf-1",
		Name: "Payment voucher",
		Stages: []api.Stage{
			{ID: "1", Name: "Manager", Step: 0, IsRequireApproval: true},
			{ID: "2", Name: "Finance", Step: 1, IsRequireApproval: true},
		},
	}
}
