package group

// Permission decisions are pure functions over membership snapshots. They
// never touch storage; callers load fresh rows immediately before deciding so
// authorization is never evaluated against stale state.
//
// A nil membership means "not a member". A PENDING membership grants nothing,
// so it is treated the same as nil for every capability.

// CanManageMembers reports whether the actor may add, remove, approve or
// reject members: the owner always, an admin only when delegated.
func CanManageMembers(actor *Membership) bool {
	if !actor.IsActive() {
		return false
	}
	switch actor.Role {
	case MemberRoleOwner:
		return true
	case MemberRoleAdmin:
		return actor.CanManageMembers
	default:
		return false
	}
}

// CanRemove decides whether the actor may remove the target member.
// Returns nil when allowed, or the specific denial reason.
func CanRemove(actor, target *Membership) error {
	if !actor.IsActive() {
		return ErrNotAMember
	}
	if !CanManageMembers(actor) {
		return ErrNoManagePermission
	}
	if target.Role == MemberRoleOwner {
		return ErrCannotRemoveOwner
	}
	if actor.Role == MemberRoleAdmin && target.Role == MemberRoleAdmin {
		return ErrAdminsCannotRemoveAdmin
	}
	return nil
}

// CanChangeRole decides whether the actor may change member roles.
// Only the owner can.
func CanChangeRole(actor *Membership) error {
	if !actor.IsActive() {
		return ErrNotAMember
	}
	if actor.Role != MemberRoleOwner {
		return ErrOnlyOwnerCanChangeRoles
	}
	return nil
}

// CanToggleAdminPermission decides whether the actor may flip the target's
// can_manage_members flag: actor must be the owner and the target must
// currently hold the admin role. Toggling on a non-admin is an error, never
// a silent no-op.
func CanToggleAdminPermission(actor, target *Membership) error {
	if !actor.IsActive() {
		return ErrNotAMember
	}
	if actor.Role != MemberRoleOwner {
		return ErrOnlyOwnerCanTogglePerm
	}
	if target.Role != MemberRoleAdmin {
		return ErrTargetNotAdmin
	}
	return nil
}
