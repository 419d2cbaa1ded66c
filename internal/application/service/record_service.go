package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/pkg/utils"
)

// CreateRecordInput holds the initial values of a new record
type CreateRecordInput struct {
	Title          string            `json:"title"`
	Client         string            `json:"client"`
	Pricing        float64           `json:"pricing"`
	Content        string            `json:"content"`
	AllocatedHours float64           `json:"allocated_hours"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
	OwnerID        int64             `json:"owner_id"`
	ActorID        int64             `json:"actor_id"`
}

// RecordOutcome is a record after a write plus the best-effort steps run
type RecordOutcome struct {
	Record      *entity.Record           `json:"record"`
	Changes     []*entity.ChangelogEntry `json:"changes,omitempty"`
	Workflow    *StartResult             `json:"workflow,omitempty"`
	SideEffects SideEffects              `json:"-"`
}

// RecordService manages the lifecycle of records outside the approval flow
type RecordService interface {
	CreateRecord(ctx context.Context, in CreateRecordInput) (*RecordOutcome, error)
	GetRecord(ctx context.Context, id int64) (*entity.Record, error)
	ListRecords(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error)
	// UpdateFields applies patch when the stored version is expectedVersion
	UpdateFields(ctx context.Context, recordID int64, expectedVersion int, patch map[string]interface{}, actorID int64) (*RecordOutcome, error)
	HideRecord(ctx context.Context, recordID, actorID int64) (*RecordOutcome, error)
	AddComment(ctx context.Context, recordID int64, actorEmail, comment string) (SideEffect, error)
}

type recordServiceImpl struct {
	recordRepo port.RecordRepository
	directory  port.Directory
	changelog  ChangelogService
	audit      AuditService
	approvals  ApprovalService
	autoStart  bool
	logger     Logger
}

// NewRecordService creates a new RecordService. With autoStart set, saving
// a draft record tries to start its approval workflow.
func NewRecordService(
	recordRepo port.RecordRepository,
	directory port.Directory,
	changelog ChangelogService,
	audit AuditService,
	approvals ApprovalService,
	autoStart bool,
	logger Logger,
) RecordService {
	return &recordServiceImpl{
		recordRepo: recordRepo,
		directory:  directory,
		changelog:  changelog,
		audit:      audit,
		approvals:  approvals,
		autoStart:  autoStart,
		logger:     logger,
	}
}

func (s *recordServiceImpl) CreateRecord(ctx context.Context, in CreateRecordInput) (*RecordOutcome, error) {
	if in.AllocatedHours < 0 {
		return nil, fmt.Errorf("%w: allocated_hours must not be negative", workflow.ErrInvalidField)
	}

	record := &entity.Record{
		Title:          utils.SanitizeString(in.Title),
		Client:         utils.SanitizeString(in.Client),
		Pricing:        in.Pricing,
		Content:        in.Content,
		Status:         entity.RecordStatusDraft,
		AllocatedHours: in.AllocatedHours,
		CustomFields:   in.CustomFields,
		OwnerID:        in.OwnerID,
		CreatedBy:      in.ActorID,
		UpdatedBy:      in.ActorID,
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		s.logger.Error("Failed to create record", "error", err)
		return nil, workflow.WrapStore("create record", err)
	}

	outcome := &RecordOutcome{Record: record}
	effect := SideEffect{Name: "changelog:version"}
	if err := s.changelog.LogVersionCreated(ctx, record.ID, in.ActorID, record.Version, nil); err != nil {
		effect.Err = err
	}
	outcome.SideEffects = append(outcome.SideEffects, effect)
	s.maybeStart(ctx, outcome)

	s.logger.Info("Record created", "record_id", record.ID, "owner_id", record.OwnerID)
	return outcome, nil
}

func (s *recordServiceImpl) GetRecord(ctx context.Context, id int64) (*entity.Record, error) {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, workflow.WrapStore("get record", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, id)
	}
	return record, nil
}

func (s *recordServiceImpl) ListRecords(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	records, err := s.recordRepo.List(ctx, filter)
	if err != nil {
		return nil, workflow.WrapStore("list records", err)
	}
	return records, nil
}

// UpdateFields saves an edit and logs its field-level diff. The changelog
// batch is best-effort; the saved record is returned even if it fails.
func (s *recordServiceImpl) UpdateFields(ctx context.Context, recordID int64, expectedVersion int, patch map[string]interface{}, actorID int64) (*RecordOutcome, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Version != expectedVersion {
		return nil, fmt.Errorf("%w: record %d is at version %d, not %d", workflow.ErrConflict, recordID, record.Version, expectedVersion)
	}

	previous := record.Snapshot()
	if err := record.ApplyPatch(patch); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrInvalidField, err)
	}
	record.Version = expectedVersion + 1
	record.UpdatedBy = actorID

	if err := s.recordRepo.Update(ctx, record, expectedVersion); err != nil {
		s.logger.Error("Failed to update record", "error", err, "record_id", recordID)
		return nil, workflow.WrapStore("update record", err)
	}

	outcome := &RecordOutcome{Record: record}
	changes, err := s.changelog.LogFieldChanges(ctx, recordID, previous, record.Snapshot(), actorID)
	outcome.Changes = changes
	outcome.SideEffects = append(outcome.SideEffects, SideEffect{Name: "changelog:fields", Err: err})
	s.maybeStart(ctx, outcome)

	s.logger.Info("Record updated", "record_id", recordID, "version", record.Version, "changes", len(changes))
	return outcome, nil
}

// HideRecord retires a record from listings. Hidden records release their
// adjustment requests for deletion.
func (s *recordServiceImpl) HideRecord(ctx context.Context, recordID, actorID int64) (*RecordOutcome, error) {
	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Hidden {
		return &RecordOutcome{Record: record}, nil
	}

	if err := s.recordRepo.SetHidden(ctx, recordID, true); err != nil {
		return nil, workflow.WrapStore("hide record", err)
	}
	record.Hidden = true

	outcome := &RecordOutcome{Record: record}
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       recordID,
		ActorID:        actorID,
		Action:         entity.AuditActionStatusChange,
		PreviousStatus: "visible",
		NewStatus:      "hidden",
	}))
	s.logger.Info("Record hidden", "record_id", recordID, "actor_id", actorID)
	return outcome, nil
}

func (s *recordServiceImpl) AddComment(ctx context.Context, recordID int64, actorEmail, comment string) (SideEffect, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return SideEffect{}, workflow.ErrCommentRequired
	}

	actor, err := s.directory.FindByEmail(ctx, actorEmail)
	if err != nil {
		return SideEffect{}, workflow.WrapStore("find actor", err)
	}
	if actor == nil {
		return SideEffect{}, fmt.Errorf("%w: %s", workflow.ErrActorNotFound, actorEmail)
	}

	record, err := s.GetRecord(ctx, recordID)
	if err != nil {
		return SideEffect{}, err
	}

	return s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:  recordID,
		ActorID:   actor.ID,
		Action:    entity.AuditActionComment,
		NewStatus: record.Status,
		Comment:   comment,
	}), nil
}

// maybeStart opportunistically starts the workflow of a saved draft
func (s *recordServiceImpl) maybeStart(ctx context.Context, outcome *RecordOutcome) {
	if !s.autoStart || s.approvals == nil || outcome.Record.Status != entity.RecordStatusDraft {
		return
	}

	effect := SideEffect{Name: "workflow:start"}
	result, err := s.approvals.StartWorkflow(ctx, outcome.Record.ID, nil)
	switch {
	case errors.Is(err, workflow.ErrWorkflowAlreadyExists):
	case err != nil:
		s.logger.Error("Automatic workflow start failed", "error", err, "record_id", outcome.Record.ID)
		effect.Err = err
	default:
		outcome.Workflow = result
		if result.Started {
			outcome.Record.Status = result.RecordStatus
		}
	}
	outcome.SideEffects = append(outcome.SideEffects, effect)
}
