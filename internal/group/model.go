package group

import "time"

// MemberRole represents the role of a group member
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "OWNER"
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// roleRank orders roles for member listings: owner first, then admins, then members
var roleRank = map[MemberRole]int{
	MemberRoleOwner:  0,
	MemberRoleAdmin:  1,
	MemberRoleMember: 2,
}

// Rank returns the fixed sort rank of a role (lower sorts first)
func (r MemberRole) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return len(roleRank)
}

// Valid reports whether the role is one of the known roles
func (r MemberRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// MemberStatus represents the status of a group member
type MemberStatus string

const (
	MemberStatusPending MemberStatus = "PENDING"
	MemberStatusActive  MemberStatus = "ACTIVE"
)

// Group represents a group in the system
type Group struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	OwnerID          int64     `json:"owner_id"`
	JoinCode         string    `json:"join_code"`
	RequiresApproval bool      `json:"requires_approval"`
	IsDirectMessage  bool      `json:"is_direct_message"`
	CreatedAt        time.Time `json:"created_at"`
}

// Membership represents a user's membership in a group
type Membership struct {
	ID               int64        `json:"id"`
	GroupID          int64        `json:"group_id"`
	UserID           int64        `json:"user_id"`
	Role             MemberRole   `json:"role"`
	Status           MemberStatus `json:"status"`
	CanManageMembers bool         `json:"can_manage_members"`
	JoinedAt         time.Time    `json:"joined_at"`

	// Populated from JOIN
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// IsActive reports whether the membership has been approved.
// A pending row grants no group-visible capabilities.
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == MemberStatusActive
}
