package workflow

import (
	"sort"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

// Resolution is the derived state of a record's primary workflow
type Resolution struct {
	CurrentStage string `json:"current_stage,omitempty"`
	NextStage    string `json:"next_stage,omitempty"`
	IsComplete   bool   `json:"is_complete"`
	// Outcome is approved or rejected once complete, empty otherwise
	Outcome string `json:"outcome,omitempty"`
}

// Resolve derives the workflow state from a record's approval rows.
//
// Any approved row completes the workflow as approved, then any rejected row
// completes it as rejected, regardless of stage order or other pending rows.
// With no rows the default stage is reported as current. Otherwise the
// current stage is the first pending row by stage order.
func Resolve(approvals []*entity.ApprovalRecord, catalog *Catalog) Resolution {
	for _, a := range approvals {
		if a.Status == entity.ApprovalStatusApproved {
			return Resolution{IsComplete: true, Outcome: entity.ApprovalStatusApproved}
		}
	}
	for _, a := range approvals {
		if a.Status == entity.ApprovalStatusRejected {
			return Resolution{IsComplete: true, Outcome: entity.ApprovalStatusRejected}
		}
	}
	if len(approvals) == 0 {
		return Resolution{CurrentStage: DefaultStageName}
	}

	pending := make([]*entity.ApprovalRecord, 0, len(approvals))
	for _, a := range approvals {
		if a.Status == entity.ApprovalStatusPending {
			pending = append(pending, a)
		}
	}
	if len(pending) == 0 {
		// every row was skipped
		return Resolution{IsComplete: true, Outcome: entity.ApprovalStatusApproved}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].StageOrder != pending[j].StageOrder {
			return pending[i].StageOrder < pending[j].StageOrder
		}
		return pending[i].ID < pending[j].ID
	})

	res := Resolution{CurrentStage: catalog.StageFor(pending[0].StageName).Name}
	if len(pending) > 1 {
		res.NextStage = catalog.StageFor(pending[1].StageName).Name
	}
	return res
}
