package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/event"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// inReview seeds a record under review with one pending approval per stage
func inReview(f *fixture, stages ...string) (*entity.Record, []*entity.ApprovalRecord) {
	r := readyRecord()
	r.Status = entity.RecordStatusInReview
	f.store.addRecord(r)

	catalog := workflow.DefaultCatalog()
	var approvals []*entity.ApprovalRecord
	for _, name := range stages {
		st := catalog.StageFor(name)
		approvals = append(approvals, f.store.addApproval(&entity.ApprovalRecord{
			RecordID:   r.ID,
			StageName:  st.Name,
			StageOrder: st.Order,
			Status:     entity.ApprovalStatusPending,
		}))
	}
	return r, approvals
}

func TestProcessApproval_ApproveCompletesWorkflow(t *testing.T) {
	f := newFixture()
	manager := f.store.addUser("manager@example.com", entity.RoleManager)
	record, approvals := inReview(f, workflow.DefaultStageName)

	svc := f.approvalService(nil)
	out, err := svc.ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "Manager@Example.com",
		Comment:    "  looks good ",
	})
	require.NoError(t, err)
	assert.Empty(t, out.SideEffects.Failed())

	assert.Equal(t, entity.RecordStatusApproved, out.RecordStatus)
	assert.True(t, out.Resolution.IsComplete)
	assert.Equal(t, entity.RecordStatusApproved, f.store.record(record.ID).Status)

	stored := f.store.approval(approvals[0].ID)
	assert.Equal(t, entity.ApprovalStatusApproved, stored.Status)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, manager.ID, *stored.ActorID)
	assert.Equal(t, "looks good", stored.Comment)
	assert.NotNil(t, stored.ApprovedAt)
	assert.Nil(t, stored.RejectedAt)

	entries := f.store.auditEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, entity.AuditActionApprove, entries[0].Action)
	assert.Equal(t, entity.AuditActionStatusChange, entries[1].Action)
	assert.Equal(t, entity.RecordStatusInReview, entries[1].PreviousStatus)
	assert.NotEmpty(t, entries[0].CorrelationID)
	assert.Equal(t, entries[0].CorrelationID, entries[1].CorrelationID)

	require.Len(t, f.notifier.approval, 1)
	assert.Equal(t, "Website redesign", f.notifier.approval[0].Title)
	assert.Equal(t, "manager", f.notifier.approval[0].ActorName)
}

func TestProcessApproval_SkipIsNotGranted(t *testing.T) {
	f := newFixture()
	f.store.addUser("admin@example.com", entity.RoleAdmin)
	record, approvals := inReview(f, "Manager Approval", "Director Approval")

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionSkip,
		ActorEmail: "admin@example.com",
	})
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)
	assert.Nil(t, out)
	assert.Equal(t, entity.RecordStatusInReview, f.store.record(record.ID).Status)
}

func TestProcessApproval_RejectSetsRecordRejected(t *testing.T) {
	f := newFixture()
	f.store.addUser("admin@example.com", entity.RoleAdmin)
	record, approvals := inReview(f, "Manager Approval", "Director Approval")

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[1].ID,
		Action:     entity.ActionReject,
		ActorEmail: "admin@example.com",
		Comment:    "over budget",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RecordStatusRejected, out.RecordStatus)
	assert.Equal(t, entity.ApprovalStatusRejected, out.Resolution.Outcome)

	stored := f.store.approval(approvals[1].ID)
	assert.NotNil(t, stored.RejectedAt)
	assert.Nil(t, stored.ApprovedAt)

	// rejections are audited but not notified
	assert.Empty(t, f.notifier.approval)
	assert.Len(t, f.store.auditEntries(), 2)
}

func TestProcessApproval_PermissionDeniedWritesNothing(t *testing.T) {
	f := newFixture()
	f.store.addUser("member@example.com", entity.RoleMember)
	record, approvals := inReview(f, workflow.DefaultStageName)

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "member@example.com",
	})
	require.ErrorIs(t, err, workflow.ErrPermissionDenied)
	assert.Nil(t, out)

	assert.Equal(t, 0, f.approvalsDB.writes)
	assert.Equal(t, 0, f.records.updateCalls)
	assert.Equal(t, 0, f.tx.calls)
	assert.Empty(t, f.store.auditEntries())
	assert.Equal(t, entity.ApprovalStatusPending, f.store.approval(approvals[0].ID).Status)
}

func TestProcessApproval_CommentRequiredBeforeMutation(t *testing.T) {
	f := newFixture()
	f.store.addUser("admin@example.com", entity.RoleAdmin)
	record, approvals := inReview(f, "VP Approval")

	_, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "admin@example.com",
		Comment:    "   ",
	})
	require.ErrorIs(t, err, workflow.ErrCommentRequired)
	assert.Equal(t, 0, f.approvalsDB.writes)
	assert.Equal(t, 0, f.tx.calls)
	assert.Empty(t, f.store.auditEntries())

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "admin@example.com",
		Comment:    "approved at board level",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RecordStatusApproved, out.RecordStatus)
}

func TestProcessApproval_GatingErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *ProcessApprovalInput)
		wantErr error
	}{
		{
			name:    "unknown action",
			mutate:  func(in *ProcessApprovalInput) { in.Action = "escalate" },
			wantErr: workflow.ErrInvalidAction,
		},
		{
			name:    "unknown actor",
			mutate:  func(in *ProcessApprovalInput) { in.ActorEmail = "ghost@example.com" },
			wantErr: workflow.ErrActorNotFound,
		},
		{
			name:    "unknown approval",
			mutate:  func(in *ProcessApprovalInput) { in.ApprovalID = 999 },
			wantErr: workflow.ErrApprovalNotFound,
		},
		{
			name:    "approval of another record",
			mutate:  func(in *ProcessApprovalInput) { in.RecordID = 999 },
			wantErr: workflow.ErrApprovalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.addUser("manager@example.com", entity.RoleManager)
			record, approvals := inReview(f, workflow.DefaultStageName)

			in := ProcessApprovalInput{
				RecordID:   record.ID,
				ApprovalID: approvals[0].ID,
				Action:     entity.ActionApprove,
				ActorEmail: "manager@example.com",
			}
			tt.mutate(&in)

			_, err := f.approvalService(nil).ProcessApproval(context.Background(), in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.approvalsDB.writes)
		})
	}
}

func TestProcessApproval_DecidedRowIsInvalidTransition(t *testing.T) {
	f := newFixture()
	f.store.addUser("manager@example.com", entity.RoleManager)
	record, approvals := inReview(f, workflow.DefaultStageName)
	svc := f.approvalService(nil)

	in := ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "manager@example.com",
	}
	_, err := svc.ProcessApproval(context.Background(), in)
	require.NoError(t, err)

	in.Action = entity.ActionReject
	_, err = svc.ProcessApproval(context.Background(), in)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, entity.ApprovalStatusApproved, f.store.approval(approvals[0].ID).Status)
}

func TestProcessApproval_LostRaceIsConflict(t *testing.T) {
	f := newFixture()
	f.store.addUser("manager@example.com", entity.RoleManager)
	record, approvals := inReview(f, workflow.DefaultStageName)

	// another decision lands between the gating read and the write
	f.approvalsDB.applyDecisionFunc = func(ctx context.Context, id int64, expected string, d entity.ApprovalDecision) error {
		return workflow.ErrConflict
	}

	_, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "manager@example.com",
	})
	require.ErrorIs(t, err, workflow.ErrConflict)
	assert.Equal(t, entity.RecordStatusInReview, f.store.record(record.ID).Status)
	assert.Empty(t, f.store.auditEntries())
}

func TestProcessApproval_AuditFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture()
	f.store.addUser("manager@example.com", entity.RoleManager)
	record, approvals := inReview(f, workflow.DefaultStageName)
	f.auditDB.createFunc = func(ctx context.Context, entry *entity.AuditLogEntry) error {
		return errors.New("disk full")
	}

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "manager@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RecordStatusApproved, f.store.record(record.ID).Status)

	failed := out.SideEffects.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "audit:approve", failed[0].Name)
	assert.NotEmpty(t, f.logger.errors)
}

func TestProcessApproval_NotificationFailureIsReported(t *testing.T) {
	f := newFixture()
	f.store.addUser("manager@example.com", entity.RoleManager)
	record, approvals := inReview(f, workflow.DefaultStageName)
	f.notifier.err = errors.New("lark unavailable")

	out, err := f.approvalService(nil).ProcessApproval(context.Background(), ProcessApprovalInput{
		RecordID:   record.ID,
		ApprovalID: approvals[0].ID,
		Action:     entity.ActionApprove,
		ActorEmail: "manager@example.com",
	})
	require.NoError(t, err)

	failed := out.SideEffects.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "notify:"+event.TypeApprovalApproved.String(), failed[0].Name)
	assert.Len(t, f.store.auditEntries(), 2)
}

func TestStartWorkflow_DefaultStage(t *testing.T) {
	f := newFixture()
	record := f.store.addRecord(readyRecord())

	result, err := f.approvalService(nil).StartWorkflow(context.Background(), record.ID, nil)
	require.NoError(t, err)
	require.True(t, result.Started)
	require.Len(t, result.Approvals, 1)
	assert.Equal(t, workflow.DefaultStageName, result.Approvals[0].StageName)
	assert.Equal(t, entity.ApprovalStatusPending, result.Approvals[0].Status)
	assert.Equal(t, entity.RecordStatusInReview, f.store.record(record.ID).Status)

	entries := f.store.auditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditActionWorkflowStart, entries[0].Action)
	require.NotNil(t, entries[0].ApprovalID)
	assert.Equal(t, result.Approvals[0].ID, *entries[0].ApprovalID)

	require.Len(t, f.notifier.approval, 1)
	assert.Equal(t, "submitted", f.notifier.approval[0].Outcome)
}

func TestStartWorkflow_SecondCallFails(t *testing.T) {
	f := newFixture()
	record := f.store.addRecord(readyRecord())
	svc := f.approvalService(nil)

	_, err := svc.StartWorkflow(context.Background(), record.ID, nil)
	require.NoError(t, err)

	_, err = svc.StartWorkflow(context.Background(), record.ID, nil)
	require.ErrorIs(t, err, workflow.ErrWorkflowAlreadyExists)

	approvals, _ := f.approvalsDB.ListByRecord(context.Background(), record.ID)
	assert.Len(t, approvals, 1)
	assert.Len(t, f.store.auditEntries(), 1)
}

func TestStartWorkflow_NotReadyIsSilentNoop(t *testing.T) {
	f := newFixture()
	r := readyRecord()
	r.Client = " "
	r.OwnerID = 0
	record := f.store.addRecord(r)

	result, err := f.approvalService(nil).StartWorkflow(context.Background(), record.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.Started)
	assert.ErrorIs(t, result.Skipped, workflow.ErrValidationFailed)
	assert.Equal(t, []string{"client", "owner_id"}, result.Missing)

	assert.Equal(t, entity.RecordStatusDraft, f.store.record(record.ID).Status)
	assert.Equal(t, 0, f.approvalsDB.writes)
	assert.Empty(t, f.store.auditEntries())
	assert.Empty(t, f.notifier.approval)
}

func TestStartWorkflow_UnknownRecord(t *testing.T) {
	f := newFixture()
	_, err := f.approvalService(nil).StartWorkflow(context.Background(), 42, nil)
	require.ErrorIs(t, err, workflow.ErrRecordNotFound)
}

func TestStartWorkflow_AmountRules(t *testing.T) {
	catalog, err := workflow.ParseCatalog([]byte(`
default_stages: [Approval Required]
stages:
  - {name: Approval Required, order: 1}
  - {name: Manager Approval, order: 1, auto_approve: true}
  - {name: Director Approval, order: 2}
amount_rules:
  - min_amount: 0
    max_amount: 10000
    stages: [Manager Approval]
  - min_amount: 10000
    stages: [Manager Approval, Director Approval]
`))
	require.NoError(t, err)

	t.Run("pricing selects the large rule", func(t *testing.T) {
		f := newFixture()
		record := f.store.addRecord(readyRecord())

		result, err := f.approvalService(catalog).StartWorkflow(context.Background(), record.ID, nil)
		require.NoError(t, err)
		require.Len(t, result.Approvals, 2)
		assert.Equal(t, entity.ApprovalStatusSkipped, result.Approvals[0].Status)
		assert.Equal(t, "auto-approved", result.Approvals[0].Comment)
		assert.Equal(t, entity.ApprovalStatusPending, result.Approvals[1].Status)
		assert.Equal(t, entity.RecordStatusInReview, result.RecordStatus)
	})

	t.Run("only auto-approved stages approve the record", func(t *testing.T) {
		f := newFixture()
		record := f.store.addRecord(readyRecord())
		amount := 500.0

		result, err := f.approvalService(catalog).StartWorkflow(context.Background(), record.ID, &amount)
		require.NoError(t, err)
		require.Len(t, result.Approvals, 1)
		assert.Equal(t, entity.RecordStatusApproved, result.RecordStatus)
		assert.Equal(t, entity.RecordStatusApproved, f.store.record(record.ID).Status)
	})
}

func TestGetWorkflowState(t *testing.T) {
	f := newFixture()
	f.store.addUser("manager@example.com", entity.RoleManager)
	f.store.addUser("member@example.com", entity.RoleMember)
	record, _ := inReview(f, "Manager Approval", "Director Approval")
	svc := f.approvalService(nil)

	state, err := svc.GetWorkflowState(context.Background(), record.ID, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Manager Approval", state.Resolution.CurrentStage)
	assert.Equal(t, "Director Approval", state.Resolution.NextStage)
	require.NotNil(t, state.Permissions)
	assert.True(t, state.Permissions.CanApprove)
	assert.False(t, state.Permissions.CanSkip)

	state, err = svc.GetWorkflowState(context.Background(), record.ID, "member@example.com")
	require.NoError(t, err)
	require.NotNil(t, state.Permissions)
	assert.False(t, state.Permissions.CanApprove)

	state, err = svc.GetWorkflowState(context.Background(), record.ID, "")
	require.NoError(t, err)
	assert.Nil(t, state.Permissions)
}
