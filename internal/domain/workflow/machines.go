package workflow

import (
	"context"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

// StateMachine holds one entity's current lifecycle state
type StateMachine interface {
	State() State
	CanFire(trigger Trigger) bool
	// Fire moves to the target state or returns ErrInvalidTransition
	Fire(ctx context.Context, trigger Trigger) error
	PermittedTriggers() []Trigger
}

// NewApprovalMachine returns the lifecycle of a single approval row.
// A row leaves pending at most once; terminal states have no transitions.
func NewApprovalMachine(status string) (StateMachine, error) {
	b := NewBuilder(StatePending, StateApproved, StateRejected, StateSkipped)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerSkip, StateSkipped)
	b.Configure(StateApproved)
	b.Configure(StateRejected)
	b.Configure(StateSkipped)
	return b.Build(State(status))
}

// NewAdjustmentMachine returns the lifecycle of an adjustment request.
// Decided requests can only be moved back to pending by reversal.
func NewAdjustmentMachine(status string) (StateMachine, error) {
	b := NewBuilder(StatePending, StateApproved, StateRejected)
	b.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	b.Configure(StateApproved).
		Permit(TriggerReverse, StatePending)
	b.Configure(StateRejected).
		Permit(TriggerReverse, StatePending)
	return b.Build(State(status))
}

// TriggerForAction maps an approval action to its trigger
func TriggerForAction(action string) (Trigger, bool) {
	switch action {
	case entity.ActionApprove:
		return TriggerApprove, true
	case entity.ActionReject:
		return TriggerReject, true
	case entity.ActionSkip:
		return TriggerSkip, true
	default:
		return "", false
	}
}

// StatusForAction returns the approval status an action produces
func StatusForAction(action string) string {
	switch action {
	case entity.ActionApprove:
		return entity.ApprovalStatusApproved
	case entity.ActionReject:
		return entity.ApprovalStatusRejected
	default:
		return entity.ApprovalStatusSkipped
	}
}
