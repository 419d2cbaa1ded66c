package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestBuilder() StateMachineBuilder {
	return NewBuilder(StateDraft, StateInReview, StateApproved, StateRejected)
}

func TestBuilder_Configure(t *testing.T) {
	builder := newTestBuilder()

	config := builder.Configure(StateDraft)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StateDraft); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnUnknownState(t *testing.T) {
	builder := newTestBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on a state outside the machine")
		}
	}()

	builder.Configure(StateSkipped)
}

func TestBuilder_BuildRejectsUnknownInitialState(t *testing.T) {
	_, err := newTestBuilder().Build(State("archived"))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Build() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestStateConfiguration_PermitPanicsOnUnknownTarget(t *testing.T) {
	builder := newTestBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	builder.Configure(StateDraft).Permit(TriggerSubmit, StatePending)
}

func TestStateConfiguration_PermitIf(t *testing.T) {
	tests := []struct {
		name      string
		guard     bool
		wantErr   error
		wantState State
	}{
		{"guard passes", true, nil, StateInReview},
		{"guard fails", false, ErrGuardFailed, StateDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := newTestBuilder()
			builder.Configure(StateDraft).
				PermitIf(TriggerSubmit, StateInReview, func(ctx context.Context) bool { return tt.guard })

			machine, err := builder.Build(StateDraft)
			if err != nil {
				t.Fatalf("Build() failed: %v", err)
			}

			err = machine.Fire(context.Background(), TriggerSubmit)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fire() error = %v, want %v", err, tt.wantErr)
			}
			if machine.State() != tt.wantState {
				t.Errorf("State after Fire() = %v, want %v", machine.State(), tt.wantState)
			}
		})
	}
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := newTestBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StateInReview)

	machine, _ := builder.Build(StateDraft)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != StateDraft {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateDraft, machine.State())
	}
}

func TestStateMachine_Independence(t *testing.T) {
	builder := newTestBuilder()
	builder.Configure(StateDraft).Permit(TriggerSubmit, StateInReview)

	machine1, _ := builder.Build(StateDraft)
	machine2, _ := builder.Build(StateDraft)

	if err := machine1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine2.State() != StateDraft {
		t.Errorf("machine2 state = %v, want %v", machine2.State(), StateDraft)
	}
}

func TestApprovalMachine(t *testing.T) {
	tests := []struct {
		status  string
		trigger Trigger
		want    State
		wantErr error
	}{
		{"pending", TriggerApprove, StateApproved, nil},
		{"pending", TriggerReject, StateRejected, nil},
		{"pending", TriggerSkip, StateSkipped, nil},
		{"approved", TriggerReject, StateApproved, ErrInvalidTransition},
		{"rejected", TriggerApprove, StateRejected, ErrInvalidTransition},
		{"skipped", TriggerSkip, StateSkipped, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.status+"_"+string(tt.trigger), func(t *testing.T) {
			machine, err := NewApprovalMachine(tt.status)
			if err != nil {
				t.Fatalf("NewApprovalMachine() failed: %v", err)
			}

			err = machine.Fire(context.Background(), tt.trigger)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Fire() error = %v, want %v", err, tt.wantErr)
			}
			if machine.State() != tt.want {
				t.Errorf("State() = %v, want %v", machine.State(), tt.want)
			}
		})
	}
}

func TestAdjustmentMachine(t *testing.T) {
	machine, err := NewAdjustmentMachine("pending")
	if err != nil {
		t.Fatalf("NewAdjustmentMachine() failed: %v", err)
	}

	if machine.CanFire(TriggerReverse) {
		t.Error("pending request must not be reversible")
	}

	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerApprove, StateApproved},
		{TriggerReverse, StatePending},
		{TriggerReject, StateRejected},
		{TriggerReverse, StatePending},
	}
	for i, step := range steps {
		if err := machine.Fire(context.Background(), step.trigger); err != nil {
			t.Fatalf("step %d: Fire(%v) failed: %v", i, step.trigger, err)
		}
		if machine.State() != step.want {
			t.Errorf("step %d: State() = %v, want %v", i, machine.State(), step.want)
		}
	}

	triggers := machine.PermittedTriggers()
	if len(triggers) != 2 || triggers[0] != TriggerApprove || triggers[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want [approve reject]", triggers)
	}
}

func TestWrapStore(t *testing.T) {
	if WrapStore("op", nil) != nil {
		t.Error("WrapStore(nil) should be nil")
	}

	raw := errors.New("disk I/O error")
	wrapped := WrapStore("update record", raw)
	var se *StoreError
	if !errors.As(wrapped, &se) || se.Op != "update record" || !errors.Is(wrapped, raw) {
		t.Errorf("WrapStore() = %v, want StoreError wrapping %v", wrapped, raw)
	}

	if again := WrapStore("outer", wrapped); again != wrapped {
		t.Errorf("WrapStore() should not double wrap, got %v", again)
	}

	conflict := fmt.Errorf("approval 3: %w", ErrConflict)
	if got := WrapStore("apply", conflict); got != conflict {
		t.Errorf("WrapStore() should pass domain errors through, got %v", got)
	}
}
