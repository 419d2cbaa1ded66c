package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

func row(id int64, stage string, order int, status string) *entity.ApprovalRecord {
	return &entity.ApprovalRecord{ID: id, StageName: stage, StageOrder: order, Status: status}
}

func TestResolve(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name      string
		approvals []*entity.ApprovalRecord
		want      Resolution
	}{
		{
			name: "no rows synthesizes default stage",
			want: Resolution{CurrentStage: DefaultStageName},
		},
		{
			name:      "single pending",
			approvals: []*entity.ApprovalRecord{row(1, "Approval Required", 1, "pending")},
			want:      Resolution{CurrentStage: "Approval Required"},
		},
		{
			name: "approved anywhere completes despite pending rows",
			approvals: []*entity.ApprovalRecord{
				row(1, "Manager Approval", 1, "pending"),
				row(2, "Director Approval", 2, "pending"),
				row(3, "VP Approval", 3, "approved"),
			},
			want: Resolution{IsComplete: true, Outcome: "approved"},
		},
		{
			name: "approved wins over rejected",
			approvals: []*entity.ApprovalRecord{
				row(1, "Manager Approval", 1, "rejected"),
				row(2, "Director Approval", 2, "approved"),
			},
			want: Resolution{IsComplete: true, Outcome: "approved"},
		},
		{
			name: "rejected completes",
			approvals: []*entity.ApprovalRecord{
				row(1, "Manager Approval", 1, "pending"),
				row(2, "Director Approval", 2, "rejected"),
			},
			want: Resolution{IsComplete: true, Outcome: "rejected"},
		},
		{
			name: "legacy stages ordered by sort order, names canonicalized",
			approvals: []*entity.ApprovalRecord{
				row(3, "vp approval", 3, "pending"),
				row(1, "MANAGER APPROVAL", 1, "skipped"),
				row(2, "director approval", 2, "pending"),
			},
			want: Resolution{CurrentStage: "Director Approval", NextStage: "VP Approval"},
		},
		{
			name: "all skipped",
			approvals: []*entity.ApprovalRecord{
				row(1, "Manager Approval", 1, "skipped"),
			},
			want: Resolution{IsComplete: true, Outcome: "approved"},
		},
		{
			name:      "unknown stage name kept verbatim",
			approvals: []*entity.ApprovalRecord{row(1, "Legal Review", 1, "pending")},
			want:      Resolution{CurrentStage: "Legal Review"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.approvals, catalog))
		})
	}
}

// Any set with an approved row is complete, for every mix of other statuses.
func TestResolve_AnyApprovedIsComplete(t *testing.T) {
	catalog := DefaultCatalog()
	statuses := []string{"pending", "rejected", "skipped"}

	for _, a := range statuses {
		for _, b := range statuses {
			approvals := []*entity.ApprovalRecord{
				row(1, "Manager Approval", 1, a),
				row(2, "Director Approval", 2, b),
				row(3, "VP Approval", 3, "approved"),
			}
			res := Resolve(approvals, catalog)
			assert.True(t, res.IsComplete, "statuses %s/%s", a, b)
			assert.Equal(t, "approved", res.Outcome)
		}
	}
}
