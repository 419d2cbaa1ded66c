package entity

// Status constants for Record
const (
	RecordStatusDraft    = "draft"
	RecordStatusInReview = "in_review"
	RecordStatusApproved = "approved"
	RecordStatusRejected = "rejected"
)

// Status constants for ApprovalRecord
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
	ApprovalStatusSkipped  = "skipped"
)

// Status constants for AdjustmentRequest
const (
	AdjustmentStatusPending  = "pending"
	AdjustmentStatusApproved = "approved"
	AdjustmentStatusRejected = "rejected"
)

// Approval actions accepted by the approval processor
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionSkip    = "skip"
)

// User roles
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleReviewer = "reviewer"
	RoleMember   = "member"
)

// Changelog categories
const (
	ChangeFieldUpdate   = "field_update"
	ChangeContentEdit   = "content_edit"
	ChangeStatusChange  = "status_change"
	ChangeVersionCreate = "version_create"
)

// IsTerminalApprovalStatus reports whether no further normal transition
// occurs from the given approval status.
func IsTerminalApprovalStatus(status string) bool {
	switch status {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusSkipped:
		return true
	default:
		return false
	}
}

// IsValidAction reports whether action is one the approval processor accepts.
func IsValidAction(action string) bool {
	switch action {
	case ActionApprove, ActionReject, ActionSkip:
		return true
	default:
		return false
	}
}
