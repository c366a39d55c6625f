package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	nextID        int64
	notifications []*Notification
}

func (s *memStore) Create(ctx context.Context, p CreateParams) (*Notification, error) {
	s.nextID++
	n := &Notification{
		ID:          s.nextID,
		RecipientID: p.RecipientID,
		Type:        p.Type,
		Title:       p.Title,
		Message:     p.Message,
		Metadata:    p.Metadata,
		CreatedAt:   time.Now(),
	}
	s.notifications = append(s.notifications, n)
	return n, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*Notification, error) {
	for _, n := range s.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByRecipientID(ctx context.Context, recipientID int64, limit, offset int, unreadOnly bool) ([]*Notification, int, error) {
	var out []*Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (s *memStore) MarkAsRead(ctx context.Context, id int64) error {
	for _, n := range s.notifications {
		if n.ID == id {
			n.IsRead = true
		}
	}
	return nil
}

func (s *memStore) MarkAllAsRead(ctx context.Context, recipientID int64) error {
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			n.IsRead = true
		}
	}
	return nil
}

func (s *memStore) GetUnreadCount(ctx context.Context, recipientID int64) (int, error) {
	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

type recordingSink struct {
	pushed []*Notification
	err    error
}

func (s *recordingSink) Push(ctx context.Context, n *Notification) error {
	if s.err != nil {
		return s.err
	}
	s.pushed = append(s.pushed, n)
	return nil
}

func newTestService() (*Service, *memStore, *recordingSink) {
	store := &memStore{}
	sink := &recordingSink{}
	return NewService(store, sink, slog.New(slog.NewTextHandler(io.Discard, nil))), store, sink
}

func TestNotify_PersistsThenPushes(t *testing.T) {
	svc, store, sink := newTestService()

	n, err := svc.Notify(context.Background(), CreateParams{
		RecipientID: 7,
		Type:        TypeGroupInvite,
		Title:       "Group Invitation",
		Message:     "You have been invited to join Team",
		Metadata:    map[string]any{"group_id": int64(3)},
	})
	require.NoError(t, err)
	require.Len(t, store.notifications, 1)
	require.Len(t, sink.pushed, 1)
	assert.Equal(t, n.ID, sink.pushed[0].ID)
	assert.False(t, n.IsRead)
}

func TestNotify_PushFailureIsSwallowed(t *testing.T) {
	svc, store, sink := newTestService()
	sink.err = errors.New("broker unavailable")

	n, err := svc.Notify(context.Background(), CreateParams{
		RecipientID: 7,
		Type:        TypeJoinRequest,
		Title:       "New Join Request",
		Message:     "jude wants to join Team",
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	// The durable record exists even though the push never went out.
	assert.Len(t, store.notifications, 1)
	assert.Empty(t, sink.pushed)
}

func TestTypedConstructors(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.GroupInvite(ctx, 7, "Team", 3))
	require.NoError(t, svc.MemberAdded(ctx, 7, "Team", 3))
	require.NoError(t, svc.JoinRequest(ctx, 1, "jude", "Team", 3, 7))
	require.NoError(t, svc.GroupApproval(ctx, 7, "Team", 3))

	require.Len(t, store.notifications, 4)
	assert.Equal(t, TypeGroupInvite, store.notifications[0].Type)
	assert.Equal(t, TypeMemberAdded, store.notifications[1].Type)
	assert.Equal(t, TypeJoinRequest, store.notifications[2].Type)
	assert.Equal(t, TypeGroupApproval, store.notifications[3].Type)

	joinReq := store.notifications[2]
	assert.Equal(t, int64(1), joinReq.RecipientID)
	assert.Equal(t, int64(3), joinReq.Metadata["group_id"])
	assert.Equal(t, int64(7), joinReq.Metadata["joiner_id"])
	assert.Contains(t, joinReq.Message, "jude")
}

func TestMarkAsRead_RecipientOnly(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	n, err := svc.Notify(ctx, CreateParams{RecipientID: 7, Type: TypeGroupInvite, Title: "t", Message: "m"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, n.ID, 8), ErrNotRecipient)
	assert.ErrorIs(t, svc.MarkAsRead(ctx, 999, 7), ErrNotificationNotFound)

	require.NoError(t, svc.MarkAsRead(ctx, n.ID, 7))
	assert.True(t, store.notifications[0].IsRead)

	count, err := svc.GetUnreadCount(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "user:42:notifications", ChannelFor(42))
}
