package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/service"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

func startTestContainer(t *testing.T) *Container {
	t.Helper()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Export.Dir = filepath.Join(dir, "exports")
	cfg.Directory.Users = []UserSeed{
		{Email: "admin@example.com", Name: "Ada", Role: "Admin"},
		{Email: "manager@example.com", Name: "Max", Role: "manager"},
		{Email: "member@example.com", Name: "Mia", Role: "member"},
		{Email: "reviewer@example.com", Name: "Rex", Role: "reviewer"},
	}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startTestContainer(t)

	assert.True(t, c.Ready())
	assert.Nil(t, c.Notifier())
	assert.Nil(t, c.Services().Notification)
	assert.Error(t, c.Start(context.Background()))

	health := c.Health()
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["notifications"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
}

func TestContainer_SeedIsIdempotent(t *testing.T) {
	c := startTestContainer(t)
	ctx := context.Background()

	require.NoError(t, c.seedDirectory(ctx))

	admins, err := c.Repositories().Users.ListByRole(ctx, entity.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@example.com", admins[0].Email)
}

func TestNewContainer_RequiresLarkWhenNotifying(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Notification.Enabled = true

	_, err := NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

// Drives the full review flow against sqlite: start, approve, then remove
// and restore the record's hours.
func TestContainer_ReviewFlow(t *testing.T) {
	c := startTestContainer(t)
	ctx := context.Background()
	svc := c.Services()

	member, err := c.Repositories().Users.FindByEmail(ctx, "member@example.com")
	require.NoError(t, err)
	admin, err := c.Repositories().Users.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)

	created, err := svc.Records.CreateRecord(ctx, service.CreateRecordInput{
		Title:          "Website redesign",
		Client:         "Acme",
		Pricing:        12000,
		AllocatedHours: 40,
		OwnerID:        member.ID,
		ActorID:        member.ID,
	})
	require.NoError(t, err)
	recordID := created.Record.ID

	started, err := svc.Approvals.StartWorkflow(ctx, recordID, nil)
	require.NoError(t, err)
	require.True(t, started.Started)
	require.Len(t, started.Approvals, 1)
	assert.Equal(t, workflow.DefaultStageName, started.Approvals[0].StageName)

	_, err = svc.Approvals.StartWorkflow(ctx, recordID, nil)
	assert.ErrorIs(t, err, workflow.ErrWorkflowAlreadyExists)

	_, err = svc.Approvals.ProcessApproval(ctx, service.ProcessApprovalInput{
		RecordID:   recordID,
		ApprovalID: started.Approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "member@example.com",
	})
	assert.ErrorIs(t, err, workflow.ErrPermissionDenied)

	approved, err := svc.Approvals.ProcessApproval(ctx, service.ProcessApprovalInput{
		RecordID:   recordID,
		ApprovalID: started.Approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "manager@example.com",
		Comment:    "looks good",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RecordStatusApproved, approved.RecordStatus)
	assert.Empty(t, approved.SideEffects.Failed())

	trail, err := svc.Audit.GetAuditTrail(ctx, recordID, entity.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, trail, 2)

	req, err := svc.Adjustments.CreateRequest(ctx, service.CreateAdjustmentInput{
		RecordID:      recordID,
		RequesterID:   member.ID,
		CurrentAmount: 40,
		Reason:        "scope cut",
	})
	require.NoError(t, err)
	require.NotNil(t, req.Request.ReviewerID)

	_, err = svc.Adjustments.CreateRequest(ctx, service.CreateAdjustmentInput{
		RecordID:      recordID,
		RequesterID:   member.ID,
		CurrentAmount: 40,
	})
	assert.ErrorIs(t, err, workflow.ErrDuplicateRequest)

	out, err := svc.Adjustments.ApproveRequest(ctx, req.Request.ID, admin.ID, 40, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Record.AllocatedHours)
	assert.True(t, out.Record.RequirementDisabled)

	_, err = svc.Adjustments.ReverseRequest(ctx, req.Request.ID, admin.ID, "undo")
	require.NoError(t, err)

	record, err := svc.Records.GetRecord(ctx, recordID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, record.AllocatedHours)
	assert.False(t, record.RequirementDisabled)
	assert.Equal(t, 0.0, record.HoursRemoved)

	reverted, err := svc.Adjustments.GetRequest(ctx, req.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AdjustmentStatusPending, reverted.Status)

	archive, err := svc.Exports.ArchiveExports(ctx, recordID)
	require.NoError(t, err)
	assert.Len(t, archive.Files, 4)
}
