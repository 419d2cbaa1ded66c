package workflow

// State is a lifecycle state of a workflow-controlled row
type State string

const (
	StateDraft    State = "draft"
	StateInReview State = "in_review"
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateSkipped  State = "skipped"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Trigger is an action that can cause a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "submit"
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
	TriggerSkip    Trigger = "skip"
	TriggerReverse Trigger = "reverse"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
