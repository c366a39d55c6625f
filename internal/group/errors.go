package group

import "errors"

// Common errors
var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrInvalidJoinCode  = errors.New("invalid group code")
	ErrAlreadyMember    = errors.New("user is already a member of this group")
	ErrAlreadyPending   = errors.New("join request is already pending approval")
	ErrInvalidRole      = errors.New("invalid member role")
	ErrInvalidStatus    = errors.New("invalid member status")
	ErrOwnerCannotLeave = errors.New("the owner cannot leave the group")

	// ErrConflict is returned by the store when an insert hits a uniqueness
	// constraint. Callers decide whether that means "retry the lookup" (DM
	// dedup) or "return the existing row" (idempotent add).
	ErrConflict = errors.New("row already exists")
)

// Permission denial reasons. Each one maps to a specific user-facing message.
var (
	ErrNotAMember              = errors.New("you are not a member of this group")
	ErrNoManagePermission      = errors.New("you do not have permission to manage members")
	ErrCannotRemoveOwner       = errors.New("cannot remove the group owner")
	ErrAdminsCannotRemoveAdmin = errors.New("admins cannot remove other admins")
	ErrOnlyOwnerCanChangeRoles = errors.New("only the owner can change member roles")
	ErrCannotChangeOwnerRole   = errors.New("the owner's role cannot be changed")
	ErrOnlyOwnerCanTogglePerm  = errors.New("only the owner can change admin permissions")
	ErrTargetNotAdmin          = errors.New("target member is not an admin")
)

// IsPermissionDenied reports whether err is one of the authorization denial
// reasons, so handlers can map the whole family to 403 in one place.
func IsPermissionDenied(err error) bool {
	for _, denial := range []error{
		ErrNotAMember,
		ErrNoManagePermission,
		ErrCannotRemoveOwner,
		ErrAdminsCannotRemoveAdmin,
		ErrOnlyOwnerCanChangeRoles,
		ErrCannotChangeOwnerRole,
		ErrOnlyOwnerCanTogglePerm,
		ErrTargetNotAdmin,
		ErrOwnerCannotLeave,
	} {
		if errors.Is(err, denial) {
			return true
		}
	}
	return false
}
