package event

// Type identifies the type of domain event
type Type string

const (
	TypeWorkflowSubmitted  Type = "workflow.submitted"
	TypeApprovalApproved   Type = "approval.approved"
	TypeAdjustmentCreated  Type = "adjustment.created"
	TypeAdjustmentApproved Type = "adjustment.approved"
	TypeAdjustmentRejected Type = "adjustment.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowSubmitted,
		TypeApprovalApproved,
		TypeAdjustmentCreated,
		TypeAdjustmentApproved,
		TypeAdjustmentRejected:
		return true
	default:
		return false
	}
}
