// Package policy decides what a user may do with a resource.
// Every role check of the application goes through Check.
package policy

import (
	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/user"
)

type Action string

const (
	ActionCreateAssignment Action = "assignment:create"
	ActionListAssignments  Action = "assignment:list"
	ActionReadAssignment   Action = "assignment:read"
	ActionUpdateAssignment Action = "assignment:update"
	ActionDeleteAssignment Action = "assignment:delete"
	ActionSubmitAssignment Action = "assignment:submit"
	ActionAssignmentStats  Action = "assignment:stats"
	ActionManageUsers      Action = "user:manage"
	ActionUpload           Action = "upload:create"
)

var (
	ErrPermissionDenied = core.NewForbiddenError("permission denied")
	ErrNotOwner         = core.NewForbiddenError("you can only access your own assignments")
	ErrStudentsOnly     = core.NewForbiddenError("only students can submit assignments")
)

// Check returns nil when `actor` may perform `action` on a resource owned by `ownerID`.
// ownerID is ignored for actions that are not about a single resource.
func Check(actor user.User, action Action, ownerID string) error {
	if !actor.Role.IsValid() {
		return ErrPermissionDenied
	}

	switch action {
	case ActionListAssignments, ActionUpload:
		return nil

	case ActionCreateAssignment, ActionAssignmentStats:
		if actor.IsAdmin() || actor.IsProfessor() {
			return nil
		}

	case ActionReadAssignment:
		if actor.IsProfessor() && actor.ID != ownerID {
			return ErrNotOwner
		}
		return nil

	case ActionUpdateAssignment, ActionDeleteAssignment:
		if actor.IsAdmin() {
			return nil
		}
		if actor.IsProfessor() {
			if actor.ID != ownerID {
				return ErrNotOwner
			}
			return nil
		}

	case ActionSubmitAssignment:
		if actor.IsStudent() {
			return nil
		}
		return ErrStudentsOnly

	case ActionManageUsers:
		if actor.IsAdmin() {
			return nil
		}
	}
	return ErrPermissionDenied
}

// ScopeOwner is the owner filter applied to listings and stats:
// professors only see their own assignments, everybody else sees all of them.
func ScopeOwner(actor user.User) string {
	if actor.IsProfessor() {
		return actor.ID
	}
	return ""
}
