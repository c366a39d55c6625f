package group

// CreateGroupBody represents the request to create a new group
type CreateGroupBody struct {
	Name             string               `json:"name" validate:"required,min=1,max=100"`
	RequiresApproval bool                 `json:"requires_approval"`
	MemberIDs        []int64              `json:"member_ids,omitempty"`
	Roles            map[int64]MemberRole `json:"roles,omitempty"`
}

// RenameGroupBody represents the request to rename a group
type RenameGroupBody struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// JoinByCodeBody represents the request to join a group via join code
type JoinByCodeBody struct {
	Code string `json:"code" validate:"required,len=6"`
}

// DirectChatBody represents the request to open a direct chat with a user
type DirectChatBody struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// AddMemberBody represents the request to add a member to a group
type AddMemberBody struct {
	UserID int64        `json:"user_id" validate:"required"`
	Role   MemberRole   `json:"role,omitempty"`
	Status MemberStatus `json:"status,omitempty"`
}

// UpdateRoleBody represents the request to change a member's role
type UpdateRoleBody struct {
	Role MemberRole `json:"role" validate:"required"`
}

// UpdatePermissionBody represents the request to toggle an admin's
// member-management permission
type UpdatePermissionBody struct {
	CanManageMembers bool `json:"can_manage_members"`
}

// UpdateStatusBody represents the request to approve or reject a pending member
type UpdateStatusBody struct {
	Status MemberStatus `json:"status" validate:"required"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	OwnerID          int64             `json:"owner_id"`
	JoinCode         string            `json:"join_code,omitempty"`
	RequiresApproval bool              `json:"requires_approval"`
	IsDirectMessage  bool              `json:"is_direct_message"`
	CreatedAt        string            `json:"created_at"`
	Members          []*MemberResponse `json:"members,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID               int64        `json:"id"`
	UserID           int64        `json:"user_id"`
	Username         string       `json:"username,omitempty"`
	Email            string       `json:"email,omitempty"`
	Role             MemberRole   `json:"role"`
	Status           MemberStatus `json:"status"`
	CanManageMembers bool         `json:"can_manage_members"`
	JoinedAt         string       `json:"joined_at"`
}

// JoinResponse represents the outcome of a join-by-code request
type JoinResponse struct {
	Status MemberStatus   `json:"status"`
	Group  *GroupResponse `json:"group"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:               g.ID,
		Name:             g.Name,
		OwnerID:          g.OwnerID,
		JoinCode:         g.JoinCode,
		RequiresApproval: g.RequiresApproval,
		IsDirectMessage:  g.IsDirectMessage,
		CreatedAt:        g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a Membership model to a MemberResponse DTO
func (m *Membership) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:               m.ID,
		UserID:           m.UserID,
		Username:         m.Username,
		Email:            m.Email,
		Role:             m.Role,
		Status:           m.Status,
		CanManageMembers: m.CanManageMembers,
		JoinedAt:         m.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
}
