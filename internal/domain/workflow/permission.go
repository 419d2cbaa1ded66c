package workflow

import "github.com/garyjia/proposal-review/internal/domain/entity"

// Permissions are the approval actions an actor may take
type Permissions struct {
	CanApprove bool `json:"can_approve"`
	CanReject  bool `json:"can_reject"`
	CanSkip    bool `json:"can_skip"`
}

// Allows reports whether the permissions cover action
func (p Permissions) Allows(action string) bool {
	switch action {
	case entity.ActionApprove:
		return p.CanApprove
	case entity.ActionReject:
		return p.CanReject
	case entity.ActionSkip:
		return p.CanSkip
	default:
		return false
	}
}

// CalculatePermissions maps an actor role to allowed actions. The stage is
// part of the contract but does not affect the result; skip is never granted.
func CalculatePermissions(role string, stage Stage) Permissions {
	switch role {
	case entity.RoleAdmin, entity.RoleManager:
		return Permissions{CanApprove: true, CanReject: true}
	default:
		return Permissions{}
	}
}
