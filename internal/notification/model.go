package notification

import "time"

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeFriendRequest NotificationType = "FRIEND_REQUEST"
	TypeGroupInvite   NotificationType = "GROUP_INVITE"
	TypeJoinRequest   NotificationType = "JOIN_REQUEST"
	TypeGroupApproval NotificationType = "GROUP_APPROVAL"
	TypeMemberAdded   NotificationType = "MEMBER_ADDED"
)

// Notification is the durable record of an event addressed to one user
type Notification struct {
	ID          int64            `json:"id"`
	RecipientID int64            `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}
