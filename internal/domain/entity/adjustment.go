package entity

import "time"

// AdjustmentRequest asks for a record's allocated hours to be removed.
// At most one request row may exist per record at a time.
type AdjustmentRequest struct {
	ID              int64      `json:"id"`
	RecordID        int64      `json:"record_id"`
	RequesterID     int64      `json:"requester_id"`
	ReviewerID      *int64     `json:"reviewer_id,omitempty"`
	CurrentAmount   float64    `json:"current_amount"`
	RequestedAmount float64    `json:"requested_amount"`
	HoursToRemove   float64    `json:"hours_to_remove"`
	Reason          string     `json:"reason"`
	Status          string     `json:"status"`
	ApproverID      *int64     `json:"approver_id,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	ApprovalComment string     `json:"approval_comment,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ClearDecision resets the request back to an undecided state
func (r *AdjustmentRequest) ClearDecision(at time.Time) {
	r.Status = AdjustmentStatusPending
	r.ApproverID = nil
	r.ApprovedAt = nil
	r.RejectedAt = nil
	r.ApprovalComment = ""
	r.RejectionReason = ""
	r.UpdatedAt = at
}

// AllocationChange is the set of record fields an adjustment decision writes
type AllocationChange struct {
	AllocatedHours      float64
	RequirementDisabled bool
	HoursRemoved        float64
	DisabledAt          *time.Time
	DisabledBy          *int64
}
