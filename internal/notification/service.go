package notification

import (
	"context"
	"errors"
	"log/slog"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// Store is the persistence contract for notifications
type Store interface {
	Create(ctx context.Context, p CreateParams) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error)
	MarkAsRead(ctx context.Context, id int64) error
	MarkAllAsRead(ctx context.Context, recipientID int64) error
	GetUnreadCount(ctx context.Context, recipientID int64) (int, error)
}

// Service handles notification business logic
type Service struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

// NewService creates a new notification service
func NewService(store Store, sink Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sink: sink, logger: logger}
}

// Notify persists a notification and hands it to the push sink. A push
// failure is logged and swallowed; the durable record already exists.
func (s *Service) Notify(ctx context.Context, p CreateParams) (*Notification, error) {
	notification, err := s.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.sink.Push(ctx, notification); err != nil {
		s.logger.Warn("notification push failed",
			"notification_id", notification.ID,
			"recipient_id", notification.RecipientID,
			"type", notification.Type,
			"error", err,
		)
	}

	return notification, nil
}

// GetByID retrieves a notification by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	notification, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification == nil {
		return nil, ErrNotificationNotFound
	}
	return notification, nil
}

// ListByRecipientID retrieves notifications for a user with pagination
func (s *Service) ListByRecipientID(ctx context.Context, recipientID int64, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.store.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read, restricted to its recipient
func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	notification, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if notification == nil {
		return ErrNotificationNotFound
	}
	if notification.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.store.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.store.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.store.GetUnreadCount(ctx, userID)
}

// Typed constructors for membership-lifecycle events. These satisfy the
// group package's Notifier interface.

// GroupInvite notifies a user they have been invited to a group
func (s *Service) GroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	_, err := s.Notify(ctx, CreateParams{
		RecipientID: recipientID,
		Type:        TypeGroupInvite,
		Title:       "Group Invitation",
		Message:     "You have been invited to join " + groupName,
		Metadata:    map[string]any{"group_id": groupID},
	})
	return err
}

// MemberAdded notifies a user they have been added to a group
func (s *Service) MemberAdded(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	_, err := s.Notify(ctx, CreateParams{
		RecipientID: recipientID,
		Type:        TypeMemberAdded,
		Title:       "Added to Group",
		Message:     "You have been added to " + groupName,
		Metadata:    map[string]any{"group_id": groupID},
	})
	return err
}

// JoinRequest notifies a manager that someone wants to join their group
func (s *Service) JoinRequest(ctx context.Context, recipientID int64, joinerName, groupName string, groupID, joinerID int64) error {
	_, err := s.Notify(ctx, CreateParams{
		RecipientID: recipientID,
		Type:        TypeJoinRequest,
		Title:       "New Join Request",
		Message:     joinerName + " wants to join " + groupName,
		Metadata:    map[string]any{"group_id": groupID, "joiner_id": joinerID},
	})
	return err
}

// GroupApproval notifies a user their join request was approved
func (s *Service) GroupApproval(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	_, err := s.Notify(ctx, CreateParams{
		RecipientID: recipientID,
		Type:        TypeGroupApproval,
		Title:       "Join Request Approved",
		Message:     "Your request to join " + groupName + " has been approved",
		Metadata:    map[string]any{"group_id": groupID},
	})
	return err
}

// FriendRequest notifies a user of a new friend request
func (s *Service) FriendRequest(ctx context.Context, recipientID int64, senderName string, senderID int64) error {
	_, err := s.Notify(ctx, CreateParams{
		RecipientID: recipientID,
		Type:        TypeFriendRequest,
		Title:       "Friend Request",
		Message:     senderName + " sent you a friend request",
		Metadata:    map[string]any{"sender_id": senderID},
	})
	return err
}
