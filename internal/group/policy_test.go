package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func member(role MemberRole, status MemberStatus, canManage bool) *Membership {
	return &Membership{Role: role, Status: status, CanManageMembers: canManage}
}

func TestCanManageMembers(t *testing.T) {
	tests := []struct {
		name  string
		actor *Membership
		want  bool
	}{
		{"owner", member(MemberRoleOwner, MemberStatusActive, true), true},
		{"admin_with_permission", member(MemberRoleAdmin, MemberStatusActive, true), true},
		{"admin_without_permission", member(MemberRoleAdmin, MemberStatusActive, false), false},
		{"plain_member", member(MemberRoleMember, MemberStatusActive, false), false},
		{"pending_admin", member(MemberRoleAdmin, MemberStatusPending, true), false},
		{"not_a_member", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManageMembers(tt.actor))
		})
	}
}

func TestCanRemove(t *testing.T) {
	tests := []struct {
		name    string
		actor   *Membership
		target  *Membership
		wantErr error
	}{
		{
			"owner_removes_member",
			member(MemberRoleOwner, MemberStatusActive, true),
			member(MemberRoleMember, MemberStatusActive, false),
			nil,
		},
		{
			"owner_removes_admin",
			member(MemberRoleOwner, MemberStatusActive, true),
			member(MemberRoleAdmin, MemberStatusActive, true),
			nil,
		},
		{
			"delegated_admin_removes_member",
			member(MemberRoleAdmin, MemberStatusActive, true),
			member(MemberRoleMember, MemberStatusActive, false),
			nil,
		},
		{
			"not_a_member",
			nil,
			member(MemberRoleMember, MemberStatusActive, false),
			ErrNotAMember,
		},
		{
			"pending_actor",
			member(MemberRoleAdmin, MemberStatusPending, true),
			member(MemberRoleMember, MemberStatusActive, false),
			ErrNotAMember,
		},
		{
			"member_lacks_permission",
			member(MemberRoleMember, MemberStatusActive, false),
			member(MemberRoleMember, MemberStatusActive, false),
			ErrNoManagePermission,
		},
		{
			"undelegated_admin_lacks_permission",
			member(MemberRoleAdmin, MemberStatusActive, false),
			member(MemberRoleMember, MemberStatusActive, false),
			ErrNoManagePermission,
		},
		{
			"nobody_removes_owner",
			member(MemberRoleAdmin, MemberStatusActive, true),
			member(MemberRoleOwner, MemberStatusActive, true),
			ErrCannotRemoveOwner,
		},
		{
			"admin_cannot_remove_admin",
			member(MemberRoleAdmin, MemberStatusActive, true),
			member(MemberRoleAdmin, MemberStatusActive, false),
			ErrAdminsCannotRemoveAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanRemove(tt.actor, tt.target)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCanChangeRole(t *testing.T) {
	assert.NoError(t, CanChangeRole(member(MemberRoleOwner, MemberStatusActive, true)))
	assert.ErrorIs(t, CanChangeRole(member(MemberRoleAdmin, MemberStatusActive, true)), ErrOnlyOwnerCanChangeRoles)
	assert.ErrorIs(t, CanChangeRole(member(MemberRoleMember, MemberStatusActive, false)), ErrOnlyOwnerCanChangeRoles)
	assert.ErrorIs(t, CanChangeRole(nil), ErrNotAMember)
	assert.ErrorIs(t, CanChangeRole(member(MemberRoleMember, MemberStatusPending, false)), ErrNotAMember)
}

func TestCanToggleAdminPermission(t *testing.T) {
	owner := member(MemberRoleOwner, MemberStatusActive, true)
	admin := member(MemberRoleAdmin, MemberStatusActive, false)

	assert.NoError(t, CanToggleAdminPermission(owner, admin))
	assert.ErrorIs(t, CanToggleAdminPermission(admin, admin), ErrOnlyOwnerCanTogglePerm)
	assert.ErrorIs(t, CanToggleAdminPermission(nil, admin), ErrNotAMember)

	// Toggling on a non-admin is an error, never a silent no-op.
	assert.ErrorIs(t,
		CanToggleAdminPermission(owner, member(MemberRoleMember, MemberStatusActive, false)),
		ErrTargetNotAdmin,
	)
	assert.ErrorIs(t, CanToggleAdminPermission(owner, owner), ErrTargetNotAdmin)
}
