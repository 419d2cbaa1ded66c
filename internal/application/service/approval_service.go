package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/event"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// ProcessApprovalInput identifies an approval decision
type ProcessApprovalInput struct {
	RecordID   int64
	ApprovalID int64
	Action     string
	ActorEmail string
	Comment    string
}

// ApprovalOutcome is the committed result of a decision plus the
// best-effort steps that followed it
type ApprovalOutcome struct {
	Approval     *entity.ApprovalRecord `json:"approval"`
	RecordStatus string                 `json:"record_status"`
	Resolution   workflow.Resolution    `json:"resolution"`
	SideEffects  SideEffects            `json:"-"`
}

// StartResult describes what a workflow start did. Started is false when
// the record was not ready; Skipped then carries the reason.
type StartResult struct {
	Started      bool                     `json:"started"`
	Skipped      error                    `json:"-"`
	Missing      []string                 `json:"missing,omitempty"`
	Approvals    []*entity.ApprovalRecord `json:"approvals,omitempty"`
	RecordStatus string                   `json:"record_status"`
	SideEffects  SideEffects              `json:"-"`
}

// WorkflowState is a read model of a record's primary workflow
type WorkflowState struct {
	Record      *entity.Record           `json:"record"`
	Approvals   []*entity.ApprovalRecord `json:"approvals"`
	Resolution  workflow.Resolution      `json:"resolution"`
	Permissions *workflow.Permissions    `json:"permissions,omitempty"`
}

// ApprovalService runs the primary approval workflow
type ApprovalService interface {
	StartWorkflow(ctx context.Context, recordID int64, amount *float64) (*StartResult, error)
	ProcessApproval(ctx context.Context, in ProcessApprovalInput) (*ApprovalOutcome, error)
	GetWorkflowState(ctx context.Context, recordID int64, actorEmail string) (*WorkflowState, error)
}

type approvalServiceImpl struct {
	recordRepo   port.RecordRepository
	approvalRepo port.ApprovalRepository
	directory    port.Directory
	txManager    port.TransactionManager
	audit        AuditService
	events       dispatcher.Dispatcher
	catalog      *workflow.Catalog
	logger       Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	recordRepo port.RecordRepository,
	approvalRepo port.ApprovalRepository,
	directory port.Directory,
	txManager port.TransactionManager,
	audit AuditService,
	events dispatcher.Dispatcher,
	catalog *workflow.Catalog,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		recordRepo:   recordRepo,
		approvalRepo: approvalRepo,
		directory:    directory,
		txManager:    txManager,
		audit:        audit,
		events:       events,
		catalog:      catalog,
		logger:       logger,
	}
}

// ProcessApproval validates and applies an approve, reject or skip decision.
// Every gating check runs before the first write.
func (s *approvalServiceImpl) ProcessApproval(ctx context.Context, in ProcessApprovalInput) (*ApprovalOutcome, error) {
	trigger, ok := workflow.TriggerForAction(in.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidAction, in.Action)
	}

	actor, err := s.directory.FindByEmail(ctx, in.ActorEmail)
	if err != nil {
		return nil, workflow.WrapStore("find actor", err)
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrActorNotFound, in.ActorEmail)
	}

	approval, err := s.approvalRepo.GetByID(ctx, in.ApprovalID)
	if err != nil {
		return nil, workflow.WrapStore("get approval", err)
	}
	if approval == nil || approval.RecordID != in.RecordID {
		return nil, fmt.Errorf("%w: approval %d on record %d", workflow.ErrApprovalNotFound, in.ApprovalID, in.RecordID)
	}

	stage := s.catalog.StageFor(approval.StageName)
	if !s.permitted(actor, stage, in.Action) {
		s.logger.Info("Approval action denied",
			"record_id", in.RecordID,
			"approval_id", in.ApprovalID,
			"actor_id", actor.ID,
			"role", actor.Role,
			"action", in.Action,
		)
		return nil, fmt.Errorf("%w: role %q cannot %s", workflow.ErrPermissionDenied, actor.Role, in.Action)
	}

	comment := strings.TrimSpace(in.Comment)
	if stage.RequiresComment && comment == "" {
		return nil, fmt.Errorf("%w: stage %q", workflow.ErrCommentRequired, stage.Name)
	}

	machine, err := workflow.NewApprovalMachine(approval.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrInvalidTransition, err)
	}
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, err
	}

	decision := entity.ApprovalDecision{
		Status:  workflow.StatusForAction(in.Action),
		ActorID: actor.ID,
		Comment: comment,
		At:      time.Now(),
	}

	var (
		record         *entity.Record
		previousStatus string
		newStatus      string
		resolution     workflow.Resolution
	)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		record, err = s.recordRepo.GetByID(txCtx, in.RecordID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, in.RecordID)
		}

		if err := s.approvalRepo.ApplyDecision(txCtx, approval.ID, entity.ApprovalStatusPending, decision); err != nil {
			return err
		}

		approvals, err := s.approvalRepo.ListByRecord(txCtx, in.RecordID)
		if err != nil {
			return err
		}
		resolution = workflow.Resolve(approvals, s.catalog)

		previousStatus = record.Status
		newStatus = previousStatus
		switch {
		case in.Action == entity.ActionReject:
			newStatus = entity.RecordStatusRejected
		case resolution.IsComplete && resolution.Outcome == entity.ApprovalStatusApproved:
			newStatus = entity.RecordStatusApproved
		}

		if newStatus != previousStatus {
			return s.recordRepo.UpdateStatus(txCtx, in.RecordID, newStatus)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to apply approval decision",
			"error", err,
			"record_id", in.RecordID,
			"approval_id", in.ApprovalID,
			"action", in.Action,
		)
		return nil, workflow.WrapStore("apply decision", err)
	}

	approval.Apply(decision)
	outcome := &ApprovalOutcome{
		Approval:     approval,
		RecordStatus: newStatus,
		Resolution:   resolution,
	}

	correlationID := event.NewCorrelationID()
	approvalID := approval.ID
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       in.RecordID,
		ApprovalID:     &approvalID,
		ActorID:        actor.ID,
		Action:         entity.AuditActionForDecision(in.Action),
		PreviousStatus: entity.ApprovalStatusPending,
		NewStatus:      decision.Status,
		Comment:        comment,
		Metadata:       map[string]interface{}{"stage": stage.Name},
		CorrelationID:  correlationID,
	}))
	if newStatus != previousStatus {
		outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
			RecordID:       in.RecordID,
			ApprovalID:     &approvalID,
			ActorID:        actor.ID,
			Action:         entity.AuditActionStatusChange,
			PreviousStatus: previousStatus,
			NewStatus:      newStatus,
			CorrelationID:  correlationID,
		}))
	}

	if in.Action == entity.ActionApprove {
		evt := event.NewEvent(event.TypeApprovalApproved, in.RecordID, correlationID, map[string]interface{}{
			event.KeyTitle:     record.Title,
			event.KeyClient:    record.Client,
			event.KeyStage:     stage.Name,
			event.KeyActorName: displayName(actor),
			event.KeyOutcome:   decision.Status,
			event.KeyComment:   comment,
		})
		outcome.SideEffects = append(outcome.SideEffects, notify(ctx, s.events, s.logger, evt))
	}

	s.logger.Info("Approval decision applied",
		"record_id", in.RecordID,
		"approval_id", approval.ID,
		"action", in.Action,
		"actor_id", actor.ID,
		"record_status", newStatus,
		"correlation_id", correlationID,
	)
	return outcome, nil
}

// StartWorkflow creates the approval rows for a record and moves it into
// review. A record missing required fields is left untouched without error.
func (s *approvalServiceImpl) StartWorkflow(ctx context.Context, recordID int64, amount *float64) (*StartResult, error) {
	record, err := s.recordRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, workflow.WrapStore("get record", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, recordID)
	}

	existing, err := s.approvalRepo.CountByRecord(ctx, recordID)
	if err != nil {
		return nil, workflow.WrapStore("count approvals", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: record %d has %d approvals", workflow.ErrWorkflowAlreadyExists, recordID, existing)
	}

	if missing := record.MissingRequiredFields(); len(missing) > 0 {
		s.logger.Info("Workflow start skipped, record not ready", "record_id", recordID, "missing", missing)
		return &StartResult{
			Skipped:      fmt.Errorf("%w: missing %s", workflow.ErrValidationFailed, strings.Join(missing, ", ")),
			Missing:      missing,
			RecordStatus: record.Status,
		}, nil
	}

	if amount == nil {
		amount = &record.Pricing
	}
	stages := s.catalog.RequiredStages(amount)

	now := time.Now()
	approvals := make([]*entity.ApprovalRecord, 0, len(stages))
	for _, st := range stages {
		a := &entity.ApprovalRecord{
			RecordID:   recordID,
			StageName:  st.Name,
			StageOrder: st.Order,
			Status:     entity.ApprovalStatusPending,
		}
		// auto-approved stages are recorded as skipped so they never
		// short-circuit the stages that still need a decision
		if st.AutoApprove {
			a.Status = entity.ApprovalStatusSkipped
			a.SkippedAt = &now
			a.Comment = "auto-approved"
		}
		approvals = append(approvals, a)
	}

	newStatus := entity.RecordStatusInReview
	if res := workflow.Resolve(approvals, s.catalog); res.IsComplete && res.Outcome == entity.ApprovalStatusApproved {
		newStatus = entity.RecordStatusApproved
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, a := range approvals {
			if err := s.approvalRepo.Create(txCtx, a); err != nil {
				return err
			}
		}
		return s.recordRepo.UpdateStatus(txCtx, recordID, newStatus)
	})
	if err != nil {
		if !errors.Is(err, workflow.ErrWorkflowAlreadyExists) {
			s.logger.Error("Failed to start workflow", "error", err, "record_id", recordID)
		}
		return nil, workflow.WrapStore("start workflow", err)
	}

	result := &StartResult{
		Started:      true,
		Approvals:    approvals,
		RecordStatus: newStatus,
	}

	correlationID := event.NewCorrelationID()
	for _, a := range approvals {
		approvalID := a.ID
		result.SideEffects = append(result.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
			RecordID:       recordID,
			ApprovalID:     &approvalID,
			ActorID:        record.UpdatedBy,
			Action:         entity.AuditActionWorkflowStart,
			PreviousStatus: record.Status,
			NewStatus:      a.Status,
			Metadata: map[string]interface{}{
				"stage":       a.StageName,
				"stage_order": a.StageOrder,
				"amount":      *amount,
			},
			CorrelationID: correlationID,
		}))
	}

	stageNames := make([]string, len(approvals))
	for i, a := range approvals {
		stageNames[i] = a.StageName
	}
	evt := event.NewEvent(event.TypeWorkflowSubmitted, recordID, correlationID, map[string]interface{}{
		event.KeyTitle:   record.Title,
		event.KeyClient:  record.Client,
		event.KeyStage:   strings.Join(stageNames, ", "),
		event.KeyOutcome: "submitted",
	})
	result.SideEffects = append(result.SideEffects, notify(ctx, s.events, s.logger, evt))

	s.logger.Info("Workflow started",
		"record_id", recordID,
		"stages", len(approvals),
		"record_status", newStatus,
		"correlation_id", correlationID,
	)
	return result, nil
}

// GetWorkflowState resolves the workflow for display. When actorEmail names
// a known user, their permissions on the current stage are included.
func (s *approvalServiceImpl) GetWorkflowState(ctx context.Context, recordID int64, actorEmail string) (*WorkflowState, error) {
	record, err := s.recordRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, workflow.WrapStore("get record", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, recordID)
	}

	approvals, err := s.approvalRepo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, workflow.WrapStore("list approvals", err)
	}

	state := &WorkflowState{
		Record:     record,
		Approvals:  approvals,
		Resolution: workflow.Resolve(approvals, s.catalog),
	}

	if actorEmail != "" && !state.Resolution.IsComplete {
		actor, err := s.directory.FindByEmail(ctx, actorEmail)
		if err != nil {
			return nil, workflow.WrapStore("find actor", err)
		}
		if actor != nil {
			p := workflow.CalculatePermissions(actor.Role, s.catalog.StageFor(state.Resolution.CurrentStage))
			state.Permissions = &p
		}
	}
	return state, nil
}

func (s *approvalServiceImpl) permitted(actor *entity.User, stage workflow.Stage, action string) bool {
	if !workflow.CalculatePermissions(actor.Role, stage).Allows(action) {
		return false
	}
	if stage.RequiredRole != "" && actor.Role != stage.RequiredRole && actor.Role != entity.RoleAdmin {
		return false
	}
	return true
}

func displayName(u *entity.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
