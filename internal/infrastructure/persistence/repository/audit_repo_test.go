package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

func TestAuditRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	approvalID := int64(4)
	entries := []*entity.AuditLogEntry{
		{RecordID: 1, ActorID: 1, Action: entity.AuditActionWorkflowStart, NewStatus: "pending", CorrelationID: "c1", CreatedAt: base},
		{RecordID: 1, ApprovalID: &approvalID, ActorID: 2, Action: entity.AuditActionApprove, PreviousStatus: "pending", NewStatus: "approved",
			Metadata: map[string]interface{}{"stage": "Approval Required"}, CorrelationID: "c2", CreatedAt: base.Add(time.Hour)},
		{RecordID: 1, ActorID: 2, Action: entity.AuditActionComment, Comment: "looks good", CorrelationID: "c3", CreatedAt: base.Add(2 * time.Hour)},
		{RecordID: 2, ActorID: 1, Action: entity.AuditActionApprove, CorrelationID: "c4", CreatedAt: base},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	all, err := repo.ListByRecord(ctx, 1, entity.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, entity.AuditActionWorkflowStart, all[0].Action)
	assert.Equal(t, "Approval Required", all[1].Metadata["stage"])
	require.NotNil(t, all[1].ApprovalID)
	assert.Equal(t, approvalID, *all[1].ApprovalID)

	actor := int64(2)
	byActor, err := repo.ListByRecord(ctx, 1, entity.AuditFilter{ActorID: &actor})
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byAction, err := repo.ListByRecord(ctx, 1, entity.AuditFilter{Actions: []entity.AuditAction{entity.AuditActionApprove, entity.AuditActionComment}})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	window, err := repo.ListByRecord(ctx, 1, entity.AuditFilter{Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "c2", window[0].CorrelationID)

	limited, err := repo.ListByRecord(ctx, 1, entity.AuditFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
