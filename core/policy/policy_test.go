package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core/user"
)

func TestCheck(t *testing.T) {
	admin := user.User{ID: "a", Role: user.RoleAdmin}
	prof := user.User{ID: "p", Role: user.RoleProfessor}
	student := user.User{ID: "s", Role: user.RoleStudent}
	nobody := user.User{ID: "n", Role: "lol"}

	tests := []struct {
		name    string
		actor   user.User
		action  Action
		owner   string
		wantErr error
	}{
		{name: "admin creates", actor: admin, action: ActionCreateAssignment},
		{name: "professor creates", actor: prof, action: ActionCreateAssignment},
		{name: "student cannot create", actor: student, action: ActionCreateAssignment, wantErr: ErrPermissionDenied},
		{name: "anybody lists", actor: student, action: ActionListAssignments},
		{name: "unknown role", actor: nobody, action: ActionListAssignments, wantErr: ErrPermissionDenied},
		{name: "student reads any", actor: student, action: ActionReadAssignment, owner: "p"},
		{name: "admin reads any", actor: admin, action: ActionReadAssignment, owner: "p"},
		{name: "professor reads own", actor: prof, action: ActionReadAssignment, owner: "p"},
		{name: "professor cannot read others", actor: prof, action: ActionReadAssignment, owner: "x", wantErr: ErrNotOwner},
		{name: "admin updates any", actor: admin, action: ActionUpdateAssignment, owner: "p"},
		{name: "professor updates own", actor: prof, action: ActionUpdateAssignment, owner: "p"},
		{name: "professor cannot update others", actor: prof, action: ActionUpdateAssignment, owner: "x", wantErr: ErrNotOwner},
		{name: "student cannot update", actor: student, action: ActionUpdateAssignment, owner: "s", wantErr: ErrPermissionDenied},
		{name: "professor cannot delete others", actor: prof, action: ActionDeleteAssignment, owner: "x", wantErr: ErrNotOwner},
		{name: "student cannot delete", actor: student, action: ActionDeleteAssignment, owner: "p", wantErr: ErrPermissionDenied},
		{name: "student submits", actor: student, action: ActionSubmitAssignment, owner: "p"},
		{name: "professor cannot submit", actor: prof, action: ActionSubmitAssignment, owner: "p", wantErr: ErrStudentsOnly},
		{name: "admin cannot submit", actor: admin, action: ActionSubmitAssignment, owner: "p", wantErr: ErrStudentsOnly},
		{name: "student has no stats", actor: student, action: ActionAssignmentStats, wantErr: ErrPermissionDenied},
		{name: "professor stats", actor: prof, action: ActionAssignmentStats},
		{name: "admin manages users", actor: admin, action: ActionManageUsers},
		{name: "professor cannot manage users", actor: prof, action: ActionManageUsers, wantErr: ErrPermissionDenied},
		{name: "student uploads", actor: student, action: ActionUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, Check(tt.actor, tt.action, tt.owner))
		})
	}
}

func TestScopeOwner(t *testing.T) {
	assert.Equal(t, "p", ScopeOwner(user.User{ID: "p", Role: user.RoleProfessor}))
	assert.Equal(t, "", ScopeOwner(user.User{ID: "a", Role: user.RoleAdmin}))
	assert.Equal(t, "", ScopeOwner(user.User{ID: "s", Role: user.RoleStudent}))
}
