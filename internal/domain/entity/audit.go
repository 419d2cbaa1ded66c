package entity

import "time"

// AuditAction identifies what an audit entry records
type AuditAction string

const (
	AuditActionApprove           AuditAction = "approve"
	AuditActionReject            AuditAction = "reject"
	AuditActionSkip              AuditAction = "skip"
	AuditActionWorkflowStart     AuditAction = "workflow_start"
	AuditActionComment           AuditAction = "comment"
	AuditActionStatusChange      AuditAction = "status_change"
	AuditActionAdjustmentCreate  AuditAction = "adjustment_create"
	AuditActionAdjustmentApprove AuditAction = "adjustment_approve"
	AuditActionAdjustmentReject  AuditAction = "adjustment_reject"
	AuditActionAdjustmentReverse AuditAction = "adjustment_reverse"
	AuditActionAdjustmentDelete  AuditAction = "adjustment_delete"
)

// AuditActionForDecision maps an approval action to its audit action
func AuditActionForDecision(action string) AuditAction {
	switch action {
	case ActionApprove:
		return AuditActionApprove
	case ActionReject:
		return AuditActionReject
	default:
		return AuditActionSkip
	}
}

// AuditLogEntry is an append-only record of an action taken against a record
type AuditLogEntry struct {
	ID             int64                  `json:"id"`
	RecordID       int64                  `json:"record_id"`
	ApprovalID     *int64                 `json:"approval_id,omitempty"`
	RequestID      *int64                 `json:"request_id,omitempty"`
	ActorID        int64                  `json:"actor_id"`
	Action         AuditAction            `json:"action"`
	PreviousStatus string                 `json:"previous_status,omitempty"`
	NewStatus      string                 `json:"new_status,omitempty"`
	Comment        string                 `json:"comment,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CorrelationID  string                 `json:"correlation_id"`
	CreatedAt      time.Time              `json:"created_at"`
}

// AuditFilter narrows an audit trail query. Zero values match everything.
type AuditFilter struct {
	Actions []AuditAction
	ActorID *int64
	Since   *time.Time
	Until   *time.Time
	Limit   int
}
