package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when acting on a row whose state does not permit the action
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not part of a machine definition
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")

	ErrActorNotFound         = errors.New("actor not found")
	ErrRecordNotFound        = errors.New("record not found")
	ErrApprovalNotFound      = errors.New("approval not found")
	ErrRequestNotFound       = errors.New("adjustment request not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrCommentRequired       = errors.New("comment required")
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrValidationFailed marks a record that is not ready to enter review.
	// Workflow start treats it as a no-op rather than a failure.
	ErrValidationFailed = errors.New("validation failed")

	ErrDeleteNotAllowed = errors.New("delete not allowed")
	ErrDuplicateRequest = errors.New("adjustment request already exists for record")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidAction    = errors.New("invalid action")
	ErrInvalidField     = errors.New("invalid field")

	// ErrConflict is returned when a conditional write finds the row already changed
	ErrConflict = errors.New("concurrent modification")
)

// StoreError wraps a failure from the underlying store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

var passthrough = []error{
	ErrConflict,
	ErrRecordNotFound,
	ErrApprovalNotFound,
	ErrRequestNotFound,
	ErrWorkflowAlreadyExists,
}

// WrapStore wraps err as a StoreError unless it is nil or already a
// domain sentinel the caller should match directly
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range passthrough {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
