package group

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same uniqueness behavior as the
// SQL schema: duplicate (group_id, user_id) pairs, duplicate join codes and
// duplicate direct-message names all surface as ErrConflict.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	groups    map[int64]*Group
	members   map[int64]map[int64]*Membership
	usernames map[int64]string

	// called before every CreateGroup insert; lets tests inject a racing
	// winner and force the conflict path
	createGroupHook func(p CreateGroupParams) error
}

func newMemStore() *memStore {
	return &memStore{
		groups:    make(map[int64]*Group),
		members:   make(map[int64]map[int64]*Membership),
		usernames: make(map[int64]string),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) CreateGroup(ctx context.Context, p CreateGroupParams) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createGroupHook != nil {
		hook := s.createGroupHook
		s.createGroupHook = nil
		if err := hook(p); err != nil {
			return nil, err
		}
	}

	for _, g := range s.groups {
		if g.JoinCode == p.JoinCode {
			return nil, ErrConflict
		}
		if p.IsDirectMessage && g.IsDirectMessage && g.Name == p.Name {
			return nil, ErrConflict
		}
	}

	group := &Group{
		ID:               s.id(),
		Name:             p.Name,
		OwnerID:          p.OwnerID,
		JoinCode:         p.JoinCode,
		RequiresApproval: p.RequiresApproval,
		IsDirectMessage:  p.IsDirectMessage,
		CreatedAt:        time.Now(),
	}
	s.groups[group.ID] = group
	s.members[group.ID] = make(map[int64]*Membership)

	if !p.IsDirectMessage {
		s.members[group.ID][p.OwnerID] = &Membership{
			ID:               s.id(),
			GroupID:          group.ID,
			UserID:           p.OwnerID,
			Role:             MemberRoleOwner,
			Status:           MemberStatusActive,
			CanManageMembers: true,
			JoinedAt:         time.Now(),
		}
	}

	clone := *group
	return &clone, nil
}

// insertWinnerDirectChat plants an already-created DM group, simulating a
// concurrent request that won the creation race.
func (s *memStore) insertWinnerDirectChat(name string, userA, userB int64) *Group {
	group := &Group{
		ID:              s.id(),
		Name:            name,
		OwnerID:         userB,
		JoinCode:        "WINNER",
		IsDirectMessage: true,
		CreatedAt:       time.Now(),
	}
	s.groups[group.ID] = group
	s.members[group.ID] = map[int64]*Membership{
		userA: {ID: s.id(), GroupID: group.ID, UserID: userA, Role: MemberRoleMember, Status: MemberStatusActive},
		userB: {ID: s.id(), GroupID: group.ID, UserID: userB, Role: MemberRoleMember, Status: MemberStatusActive},
	}
	return group
}

func (s *memStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	clone := *g
	return &clone, nil
}

func (s *memStore) GetGroupByJoinCode(ctx context.Context, code string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if !g.IsDirectMessage && g.JoinCode == code {
			clone := *g
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetDirectGroupByName(ctx context.Context, name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.IsDirectMessage && g.Name == name {
			clone := *g
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListGroupsByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var groups []*Group
	for gid, members := range s.members {
		if m, ok := members[userID]; ok && m.Status == MemberStatusActive {
			clone := *s.groups[gid]
			groups = append(groups, &clone)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	total := len(groups)
	if offset > len(groups) {
		offset = len(groups)
	}
	groups = groups[offset:]
	if limit < len(groups) {
		groups = groups[:limit]
	}
	return groups, total, nil
}

func (s *memStore) RenameGroup(ctx context.Context, id int64, name string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, nil
	}
	g.Name = name
	clone := *g
	return &clone, nil
}

func (s *memStore) UpdateJoinCode(ctx context.Context, id int64, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return ErrGroupNotFound
	}
	for _, other := range s.groups {
		if other.ID != id && other.JoinCode == code {
			return ErrConflict
		}
	}
	g.JoinCode = code
	return nil
}

func (s *memStore) InsertMember(ctx context.Context, p InsertMemberParams) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.members[p.GroupID]
	if !ok {
		return nil, fmt.Errorf("group %d does not exist", p.GroupID)
	}
	if _, exists := members[p.UserID]; exists {
		return nil, ErrConflict
	}
	m := &Membership{
		ID:               s.id(),
		GroupID:          p.GroupID,
		UserID:           p.UserID,
		Role:             p.Role,
		Status:           p.Status,
		CanManageMembers: p.CanManageMembers,
		JoinedAt:         time.Now(),
	}
	members[p.UserID] = m
	clone := *m
	return &clone, nil
}

func (s *memStore) GetMember(ctx context.Context, groupID, userID int64) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	clone := *m
	clone.Username = s.usernames[userID]
	return &clone, nil
}

func (s *memStore) ListMembers(ctx context.Context, groupID int64, status MemberStatus) ([]*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var members []*Membership
	for _, m := range s.members[groupID] {
		if m.Status != status {
			continue
		}
		clone := *m
		clone.Username = s.usernames[m.UserID]
		members = append(members, &clone)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Role.Rank() != members[j].Role.Rank() {
			return members[i].Role.Rank() < members[j].Role.Rank()
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (s *memStore) UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole, canManage bool) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	m.Role = role
	m.CanManageMembers = canManage
	clone := *m
	return &clone, nil
}

func (s *memStore) UpdateMemberPermission(ctx context.Context, groupID, userID int64, canManage bool) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	m.CanManageMembers = canManage
	clone := *m
	return &clone, nil
}

func (s *memStore) UpdateMemberStatus(ctx context.Context, groupID, userID int64, status MemberStatus) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, nil
	}
	m.Status = status
	clone := *m
	return &clone, nil
}

func (s *memStore) DeleteMember(ctx context.Context, groupID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[groupID][userID]; !ok {
		return ErrMemberNotFound
	}
	delete(s.members[groupID], userID)
	return nil
}

// notifyEvent records one dispatched notification.
type notifyEvent struct {
	kind      string
	recipient int64
	group     int64
}

// fakeNotifier records dispatches and can be told to fail.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
	err    error
}

func (f *fakeNotifier) record(kind string, recipient, group int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, notifyEvent{kind: kind, recipient: recipient, group: group})
	return nil
}

func (f *fakeNotifier) GroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	return f.record("group_invite", recipientID, groupID)
}

func (f *fakeNotifier) MemberAdded(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	return f.record("member_added", recipientID, groupID)
}

func (f *fakeNotifier) JoinRequest(ctx context.Context, recipientID int64, joinerName, groupName string, groupID, joinerID int64) error {
	return f.record("join_request", recipientID, groupID)
}

func (f *fakeNotifier) GroupApproval(ctx context.Context, recipientID int64, groupName string, groupID int64) error {
	return f.record("group_approval", recipientID, groupID)
}

func (f *fakeNotifier) ofKind(kind string) []notifyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifyEvent
	for _, e := range f.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeIdentities resolves display names from the store's username table.
type fakeIdentities struct {
	store *memStore
}

func (f *fakeIdentities) DisplayName(ctx context.Context, userID int64) (string, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	name, ok := f.store.usernames[userID]
	if !ok {
		return "", fmt.Errorf("user %d not found", userID)
	}
	return name, nil
}

func newTestService() (*Service, *memStore, *fakeNotifier) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, &fakeIdentities{store: store}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, store, notifier
}
