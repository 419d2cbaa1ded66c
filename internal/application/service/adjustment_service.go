package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/proposal-review/internal/application/dispatcher"
	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/event"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/pkg/utils"
)

// CreateAdjustmentInput asks for a record's allocated hours to be removed
type CreateAdjustmentInput struct {
	RecordID      int64
	RequesterID   int64
	CurrentAmount float64
	Reason        string
}

// AdjustmentOutcome is the committed state after an adjustment operation
type AdjustmentOutcome struct {
	Request     *entity.AdjustmentRequest `json:"request"`
	Record      *entity.Record            `json:"record,omitempty"`
	SideEffects SideEffects               `json:"-"`
}

// AdjustmentService runs the resource-adjustment workflow
type AdjustmentService interface {
	CreateRequest(ctx context.Context, in CreateAdjustmentInput) (*AdjustmentOutcome, error)
	ApproveRequest(ctx context.Context, requestID, approverID int64, currentAmount float64, comment string) (*AdjustmentOutcome, error)
	RejectRequest(ctx context.Context, requestID, approverID int64, reason string, currentAmount float64) (*AdjustmentOutcome, error)
	ReverseRequest(ctx context.Context, requestID, adminID int64, reason string) (*AdjustmentOutcome, error)
	DeleteRequest(ctx context.Context, requestID, adminID int64) (*AdjustmentOutcome, error)
	GetRequest(ctx context.Context, requestID int64) (*entity.AdjustmentRequest, error)
	ListRequests(ctx context.Context, recordID int64) ([]*entity.AdjustmentRequest, error)
}

type adjustmentServiceImpl struct {
	recordRepo     port.RecordRepository
	adjustmentRepo port.AdjustmentRepository
	directory      port.Directory
	txManager      port.TransactionManager
	audit          AuditService
	events         dispatcher.Dispatcher
	reviewerRole   string
	logger         Logger
}

// NewAdjustmentService creates a new AdjustmentService. Reviewers are
// drawn from users holding reviewerRole.
func NewAdjustmentService(
	recordRepo port.RecordRepository,
	adjustmentRepo port.AdjustmentRepository,
	directory port.Directory,
	txManager port.TransactionManager,
	audit AuditService,
	events dispatcher.Dispatcher,
	reviewerRole string,
	logger Logger,
) AdjustmentService {
	if reviewerRole == "" {
		reviewerRole = entity.RoleReviewer
	}
	return &adjustmentServiceImpl{
		recordRepo:     recordRepo,
		adjustmentRepo: adjustmentRepo,
		directory:      directory,
		txManager:      txManager,
		audit:          audit,
		events:         events,
		reviewerRole:   reviewerRole,
		logger:         logger,
	}
}

// CreateRequest opens a pending request to remove all of a record's hours.
// Any existing request row for the record blocks creation.
func (s *adjustmentServiceImpl) CreateRequest(ctx context.Context, in CreateAdjustmentInput) (*AdjustmentOutcome, error) {
	if err := utils.ValidateHours(in.CurrentAmount); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrInvalidAmount, err)
	}

	requester, err := s.actor(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}

	record, err := s.recordRepo.GetByID(ctx, in.RecordID)
	if err != nil {
		return nil, workflow.WrapStore("get record", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, in.RecordID)
	}

	exists, err := s.adjustmentRepo.ExistsForRecord(ctx, in.RecordID)
	if err != nil {
		return nil, workflow.WrapStore("check adjustment requests", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: record %d", workflow.ErrDuplicateRequest, in.RecordID)
	}

	reviewers := s.reviewerPool(ctx)

	req := &entity.AdjustmentRequest{
		RecordID:        in.RecordID,
		RequesterID:     requester.ID,
		CurrentAmount:   in.CurrentAmount,
		RequestedAmount: 0,
		HoursToRemove:   in.CurrentAmount,
		Reason:          utils.SanitizeString(in.Reason),
		Status:          entity.AdjustmentStatusPending,
	}
	if len(reviewers) > 0 {
		id := reviewers[0].ID
		req.ReviewerID = &id
	}

	if err := s.adjustmentRepo.Create(ctx, req); err != nil {
		s.logger.Error("Failed to create adjustment request", "error", err, "record_id", in.RecordID)
		return nil, workflow.WrapStore("create adjustment request", err)
	}

	outcome := &AdjustmentOutcome{Request: req, Record: record}
	correlationID := event.NewCorrelationID()
	requestID := req.ID
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:      in.RecordID,
		RequestID:     &requestID,
		ActorID:       requester.ID,
		Action:        entity.AuditActionAdjustmentCreate,
		NewStatus:     req.Status,
		Comment:       req.Reason,
		Metadata:      map[string]interface{}{"hours_to_remove": req.HoursToRemove, "reviewers": len(reviewers)},
		CorrelationID: correlationID,
	}))

	recipients := make([]string, 0, len(reviewers))
	for _, r := range reviewers {
		recipients = append(recipients, r.Email)
	}
	outcome.SideEffects = append(outcome.SideEffects, notify(ctx, s.events, s.logger,
		s.adjustmentEvent(event.TypeAdjustmentCreated, record, req, requester, req.Reason, recipients, correlationID)))

	s.logger.Info("Adjustment request created",
		"request_id", req.ID,
		"record_id", in.RecordID,
		"hours_to_remove", req.HoursToRemove,
		"reviewer_assigned", req.ReviewerID != nil,
	)
	return outcome, nil
}

// ApproveRequest approves a pending request and removes the record's hours
// in the same transaction. The amount removed is the record's stored
// allocation; currentAmount is what the caller saw and is kept for forensics.
func (s *adjustmentServiceImpl) ApproveRequest(ctx context.Context, requestID, approverID int64, currentAmount float64, comment string) (*AdjustmentOutcome, error) {
	approver, req, err := s.loadForDecision(ctx, requestID, approverID, workflow.TriggerApprove)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var (
		record  *entity.Record
		removed float64
	)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		record, err = s.recordRepo.GetByID(txCtx, req.RecordID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: %d", workflow.ErrRecordNotFound, req.RecordID)
		}

		req.Status = entity.AdjustmentStatusApproved
		req.ApproverID = &approver.ID
		req.ApprovedAt = &now
		req.RejectedAt = nil
		req.ApprovalComment = utils.SanitizeString(comment)
		req.UpdatedAt = now
		if err := s.adjustmentRepo.Update(txCtx, req, entity.AdjustmentStatusPending); err != nil {
			return err
		}

		removed = record.AllocatedHours
		change := entity.AllocationChange{
			AllocatedHours:      0,
			RequirementDisabled: true,
			HoursRemoved:        removed,
			DisabledAt:          &now,
			DisabledBy:          &approver.ID,
		}
		if err := s.recordRepo.UpdateAllocation(txCtx, record.ID, change); err != nil {
			return err
		}
		applyAllocation(record, change)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to approve adjustment request", "error", err, "request_id", requestID)
		return nil, workflow.WrapStore("approve adjustment request", err)
	}

	if currentAmount > 0 && currentAmount != removed {
		s.logger.Info("Reported allocation differs from stored allocation",
			"request_id", requestID,
			"reported", currentAmount,
			"stored", removed,
		)
	}

	outcome := &AdjustmentOutcome{Request: req, Record: record}
	correlationID := event.NewCorrelationID()
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       req.RecordID,
		RequestID:      &req.ID,
		ActorID:        approver.ID,
		Action:         entity.AuditActionAdjustmentApprove,
		PreviousStatus: entity.AdjustmentStatusPending,
		NewStatus:      req.Status,
		Comment:        req.ApprovalComment,
		Metadata:       map[string]interface{}{"hours_removed": removed, "reported_amount": currentAmount},
		CorrelationID:  correlationID,
	}))
	outcome.SideEffects = append(outcome.SideEffects, notify(ctx, s.events, s.logger,
		s.adjustmentEvent(event.TypeAdjustmentApproved, record, req, approver, req.ApprovalComment, s.requesterEmail(ctx, req), correlationID)))

	s.logger.Info("Adjustment request approved", "request_id", requestID, "record_id", req.RecordID, "hours_removed", removed)
	return outcome, nil
}

// RejectRequest rejects a pending request. The record is not touched.
func (s *adjustmentServiceImpl) RejectRequest(ctx context.Context, requestID, approverID int64, reason string, currentAmount float64) (*AdjustmentOutcome, error) {
	approver, req, err := s.loadForDecision(ctx, requestID, approverID, workflow.TriggerReject)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	req.Status = entity.AdjustmentStatusRejected
	req.ApproverID = &approver.ID
	req.RejectedAt = &now
	req.ApprovedAt = nil
	req.RejectionReason = utils.SanitizeString(reason)
	req.UpdatedAt = now

	if err := s.adjustmentRepo.Update(ctx, req, entity.AdjustmentStatusPending); err != nil {
		s.logger.Error("Failed to reject adjustment request", "error", err, "request_id", requestID)
		return nil, workflow.WrapStore("reject adjustment request", err)
	}

	record, err := s.recordRepo.GetByID(ctx, req.RecordID)
	if err != nil {
		s.logger.Error("Failed to reload record after rejection", "error", err, "record_id", req.RecordID)
	}

	outcome := &AdjustmentOutcome{Request: req, Record: record}
	correlationID := event.NewCorrelationID()
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       req.RecordID,
		RequestID:      &req.ID,
		ActorID:        approver.ID,
		Action:         entity.AuditActionAdjustmentReject,
		PreviousStatus: entity.AdjustmentStatusPending,
		NewStatus:      req.Status,
		Comment:        req.RejectionReason,
		Metadata:       map[string]interface{}{"reported_amount": currentAmount},
		CorrelationID:  correlationID,
	}))
	outcome.SideEffects = append(outcome.SideEffects, notify(ctx, s.events, s.logger,
		s.adjustmentEvent(event.TypeAdjustmentRejected, record, req, approver, req.RejectionReason, s.requesterEmail(ctx, req), correlationID)))

	s.logger.Info("Adjustment request rejected", "request_id", requestID, "record_id", req.RecordID)
	return outcome, nil
}

// ReverseRequest moves a decided request back to pending. Reversing an
// approval also restores the record's hours and clears the disabled flags.
func (s *adjustmentServiceImpl) ReverseRequest(ctx context.Context, requestID, adminID int64, reason string) (*AdjustmentOutcome, error) {
	admin, err := s.admin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := fireAdjustment(ctx, req.Status, workflow.TriggerReverse); err != nil {
		return nil, err
	}

	previousStatus := req.Status
	now := time.Now()
	var (
		record   *entity.Record
		restored float64
	)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req.ClearDecision(now)
		if err := s.adjustmentRepo.Update(txCtx, req, previousStatus); err != nil {
			return err
		}

		var err error
		record, err = s.recordRepo.GetByID(txCtx, req.RecordID)
		if err != nil {
			return err
		}
		if previousStatus != entity.AdjustmentStatusApproved || record == nil {
			return nil
		}

		restored = record.HoursRemoved
		change := entity.AllocationChange{
			AllocatedHours:      record.AllocatedHours + record.HoursRemoved,
			RequirementDisabled: false,
			HoursRemoved:        0,
		}
		if err := s.recordRepo.UpdateAllocation(txCtx, record.ID, change); err != nil {
			return err
		}
		applyAllocation(record, change)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reverse adjustment request", "error", err, "request_id", requestID)
		return nil, workflow.WrapStore("reverse adjustment request", err)
	}

	outcome := &AdjustmentOutcome{Request: req, Record: record}
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       req.RecordID,
		RequestID:      &req.ID,
		ActorID:        admin.ID,
		Action:         entity.AuditActionAdjustmentReverse,
		PreviousStatus: previousStatus,
		NewStatus:      req.Status,
		Comment:        utils.SanitizeString(reason),
		Metadata:       map[string]interface{}{"hours_restored": restored},
	}))

	s.logger.Info("Adjustment request reversed",
		"request_id", requestID,
		"previous_status", previousStatus,
		"hours_restored", restored,
	)
	return outcome, nil
}

// DeleteRequest removes a request when its record is gone or hidden, or
// while the request is still pending.
func (s *adjustmentServiceImpl) DeleteRequest(ctx context.Context, requestID, adminID int64) (*AdjustmentOutcome, error) {
	admin, err := s.admin(ctx, adminID)
	if err != nil {
		return nil, err
	}

	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, err
	}

	record, err := s.recordRepo.GetByID(ctx, req.RecordID)
	if err != nil {
		return nil, workflow.WrapStore("get record", err)
	}

	allowed := record == nil || record.Hidden || req.Status == entity.AdjustmentStatusPending
	if !allowed {
		return nil, fmt.Errorf("%w: request %d is %s and record %d is active", workflow.ErrDeleteNotAllowed, requestID, req.Status, req.RecordID)
	}

	if err := s.adjustmentRepo.Delete(ctx, requestID); err != nil {
		s.logger.Error("Failed to delete adjustment request", "error", err, "request_id", requestID)
		return nil, workflow.WrapStore("delete adjustment request", err)
	}

	outcome := &AdjustmentOutcome{Request: req, Record: record}
	outcome.SideEffects = append(outcome.SideEffects, s.audit.Log(ctx, &entity.AuditLogEntry{
		RecordID:       req.RecordID,
		RequestID:      &req.ID,
		ActorID:        admin.ID,
		Action:         entity.AuditActionAdjustmentDelete,
		PreviousStatus: req.Status,
		Metadata:       map[string]interface{}{"record_missing": record == nil},
	}))

	s.logger.Info("Adjustment request deleted", "request_id", requestID, "record_id", req.RecordID)
	return outcome, nil
}

func (s *adjustmentServiceImpl) GetRequest(ctx context.Context, requestID int64) (*entity.AdjustmentRequest, error) {
	return s.request(ctx, requestID)
}

func (s *adjustmentServiceImpl) ListRequests(ctx context.Context, recordID int64) ([]*entity.AdjustmentRequest, error) {
	reqs, err := s.adjustmentRepo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, workflow.WrapStore("list adjustment requests", err)
	}
	return reqs, nil
}

// loadForDecision runs the gating checks shared by approve and reject
func (s *adjustmentServiceImpl) loadForDecision(ctx context.Context, requestID, approverID int64, trigger workflow.Trigger) (*entity.User, *entity.AdjustmentRequest, error) {
	approver, err := s.actor(ctx, approverID)
	if err != nil {
		return nil, nil, err
	}

	req, err := s.request(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	if !canDecideAdjustment(approver, req) {
		return nil, nil, fmt.Errorf("%w: role %q cannot decide adjustment requests", workflow.ErrPermissionDenied, approver.Role)
	}

	if err := fireAdjustment(ctx, req.Status, trigger); err != nil {
		return nil, nil, err
	}
	return approver, req, nil
}

func (s *adjustmentServiceImpl) actor(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.directory.GetByID(ctx, id)
	if err != nil {
		return nil, workflow.WrapStore("get actor", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user %d", workflow.ErrActorNotFound, id)
	}
	return u, nil
}

func (s *adjustmentServiceImpl) admin(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.actor(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: administrator required", workflow.ErrPermissionDenied)
	}
	return u, nil
}

func (s *adjustmentServiceImpl) request(ctx context.Context, id int64) (*entity.AdjustmentRequest, error) {
	req, err := s.adjustmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, workflow.WrapStore("get adjustment request", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %d", workflow.ErrRequestNotFound, id)
	}
	return req, nil
}

// reviewerPool returns users with the reviewer role and a deliverable email.
// Lookup failures leave the pool empty; administrators can still act.
func (s *adjustmentServiceImpl) reviewerPool(ctx context.Context) []*entity.User {
	users, err := s.directory.ListByRole(ctx, s.reviewerRole)
	if err != nil {
		s.logger.Error("Failed to load reviewer pool", "error", err, "role", s.reviewerRole)
		return nil
	}

	valid := make([]*entity.User, 0, len(users))
	for _, u := range users {
		if err := utils.ValidateEmail(strings.TrimSpace(u.Email)); err != nil {
			s.logger.Info("Skipping reviewer without valid email", "user_id", u.ID)
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		s.logger.Info("No reviewers available for adjustment request", "role", s.reviewerRole)
	}
	return valid
}

func (s *adjustmentServiceImpl) requesterEmail(ctx context.Context, req *entity.AdjustmentRequest) []string {
	u, err := s.directory.GetByID(ctx, req.RequesterID)
	if err != nil || u == nil || utils.ValidateEmail(u.Email) != nil {
		return nil
	}
	return []string{u.Email}
}

func (s *adjustmentServiceImpl) adjustmentEvent(t event.Type, record *entity.Record, req *entity.AdjustmentRequest, actor *entity.User, reason string, recipients []string, correlationID string) *event.Event {
	payload := map[string]interface{}{
		event.KeyRequestID:  req.ID,
		event.KeyHours:      req.HoursToRemove,
		event.KeyReason:     reason,
		event.KeyActorName:  displayName(actor),
		event.KeyRecipients: recipients,
	}
	if record != nil {
		payload[event.KeyTitle] = record.Title
		payload[event.KeyClient] = record.Client
	}
	return event.NewEvent(t, req.RecordID, correlationID, payload)
}

func canDecideAdjustment(u *entity.User, req *entity.AdjustmentRequest) bool {
	switch u.Role {
	case entity.RoleAdmin, entity.RoleManager, entity.RoleReviewer:
		return true
	}
	return req.ReviewerID != nil && *req.ReviewerID == u.ID
}

func fireAdjustment(ctx context.Context, status string, trigger workflow.Trigger) error {
	machine, err := workflow.NewAdjustmentMachine(status)
	if err != nil {
		return fmt.Errorf("%w: %v", workflow.ErrInvalidTransition, err)
	}
	return machine.Fire(ctx, trigger)
}

func applyAllocation(r *entity.Record, c entity.AllocationChange) {
	r.AllocatedHours = c.AllocatedHours
	r.RequirementDisabled = c.RequirementDisabled
	r.HoursRemoved = c.HoursRemoved
	r.DisabledAt = c.DisabledAt
	r.DisabledBy = c.DisabledBy
	r.Version++
}
