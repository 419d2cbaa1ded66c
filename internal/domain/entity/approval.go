package entity

import "time"

// ApprovalRecord is one (record, stage) approval decision
type ApprovalRecord struct {
	ID         int64      `json:"id"`
	RecordID   int64      `json:"record_id"`
	StageName  string     `json:"stage_name"`
	StageOrder int        `json:"stage_order"`
	Status     string     `json:"status"`
	ActorID    *int64     `json:"actor_id,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	SkippedAt  *time.Time `json:"skipped_at,omitempty"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ApprovalDecision is the terminal transition applied to an approval row
type ApprovalDecision struct {
	Status  string
	ActorID int64
	Comment string
	At      time.Time
}

// Apply copies the decision onto the approval, setting exactly one of the
// terminal timestamp fields
func (a *ApprovalRecord) Apply(d ApprovalDecision) {
	actor := d.ActorID
	at := d.At
	a.Status = d.Status
	a.ActorID = &actor
	a.Comment = d.Comment
	a.ApprovedAt, a.RejectedAt, a.SkippedAt = nil, nil, nil
	switch d.Status {
	case ApprovalStatusApproved:
		a.ApprovedAt = &at
	case ApprovalStatusRejected:
		a.RejectedAt = &at
	case ApprovalStatusSkipped:
		a.SkippedAt = &at
	}
	a.Version++
	a.UpdatedAt = at
}
