package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// createAttempts bounds retries when a freshly generated join code collides
// with an existing one.
const createAttempts = 5

// Store is the persistence contract the service operates against. The SQL
// Repository satisfies it; tests use an in-memory fake.
type Store interface {
	CreateGroup(ctx context.Context, p CreateGroupParams) (*Group, error)
	GetGroup(ctx context.Context, id int64) (*Group, error)
	GetGroupByJoinCode(ctx context.Context, code string) (*Group, error)
	GetDirectGroupByName(ctx context.Context, name string) (*Group, error)
	ListGroupsByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error)
	RenameGroup(ctx context.Context, id int64, name string) (*Group, error)
	UpdateJoinCode(ctx context.Context, id int64, code string) error

	InsertMember(ctx context.Context, p InsertMemberParams) (*Membership, error)
	GetMember(ctx context.Context, groupID, userID int64) (*Membership, error)
	ListMembers(ctx context.Context, groupID int64, status MemberStatus) ([]*Membership, error)
	UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole, canManage bool) (*Membership, error)
	UpdateMemberPermission(ctx context.Context, groupID, userID int64, canManage bool) (*Membership, error)
	UpdateMemberStatus(ctx context.Context, groupID, userID int64, status MemberStatus) (*Membership, error)
	DeleteMember(ctx context.Context, groupID, userID int64) error
}

// Notifier delivers membership-lifecycle notifications. Delivery is
// best-effort: the service logs failures and never lets them unwind a
// committed membership mutation.
type Notifier interface {
	GroupInvite(ctx context.Context, recipientID int64, groupName string, groupID int64) error
	MemberAdded(ctx context.Context, recipientID int64, groupName string, groupID int64) error
	JoinRequest(ctx context.Context, recipientID int64, joinerName, groupName string, groupID, joinerID int64) error
	GroupApproval(ctx context.Context, recipientID int64, groupName string, groupID int64) error
}

// Identities resolves user ids to display names for notification text and
// member listings.
type Identities interface {
	DisplayName(ctx context.Context, userID int64) (string, error)
}

// Service handles group and membership business logic
type Service struct {
	store      Store
	notifier   Notifier
	identities Identities
	logger     *slog.Logger
}

// NewService creates a new group service
func NewService(store Store, notifier Notifier, identities Identities, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, identities: identities, logger: logger}
}

// logNotifyErr records a failed notification dispatch. Membership state is
// the source of truth; notifications never fail an operation.
func (s *Service) logNotifyErr(err error, event string, recipientID, groupID int64) {
	if err != nil {
		s.logger.Warn("notification dispatch failed",
			"event", event,
			"recipient_id", recipientID,
			"group_id", groupID,
			"error", err,
		)
	}
}

// CreateGroupRequest carries the inputs for creating a group.
type CreateGroupRequest struct {
	Name             string
	RequiresApproval bool
	MemberIDs        []int64
	Roles            map[int64]MemberRole
}

// Create creates a new group with a fresh join code, the creator as its
// active owner, and each initial member as an active member (role taken from
// Roles, defaulting to member). Every initial member gets a group-invite
// notification.
func (s *Service) Create(ctx context.Context, ownerID int64, req *CreateGroupRequest) (*Group, error) {
	group, err := s.createWithFreshCode(ctx, func(code string) CreateGroupParams {
		return CreateGroupParams{
			Name:             req.Name,
			OwnerID:          ownerID,
			JoinCode:         code,
			RequiresApproval: req.RequiresApproval,
		}
	})
	if err != nil {
		return nil, err
	}

	for _, memberID := range req.MemberIDs {
		if memberID == ownerID {
			continue
		}
		role := MemberRoleMember
		if r, ok := req.Roles[memberID]; ok && r != MemberRoleOwner {
			role = r
		}
		if _, err := s.insertMemberIdempotent(ctx, InsertMemberParams{
			GroupID: group.ID,
			UserID:  memberID,
			Role:    role,
			Status:  MemberStatusActive,
		}); err != nil {
			return nil, err
		}
		s.logNotifyErr(s.notifier.GroupInvite(ctx, memberID, group.Name, group.ID), "group_invite", memberID, group.ID)
	}

	return group, nil
}

// createWithFreshCode inserts a group, regenerating the join code and
// retrying when the code collides with an existing group's.
func (s *Service) createWithFreshCode(ctx context.Context, build func(code string) CreateGroupParams) (*Group, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := NewJoinCode()
		if err != nil {
			return nil, err
		}
		group, err := s.store.CreateGroup(ctx, build(code))
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create group: %w", err)
		}
		return group, nil
	}
	return nil, fmt.Errorf("failed to create group: %w", ErrConflict)
}

// directChatName derives the canonical, order-independent name for the
// direct-message group between two users.
func directChatName(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm-%d-%d", a, b)
}

// GetOrCreateDirectChat returns the id of the direct-message group between
// the two users, creating it on first use. Concurrent calls converge on the
// same group: a conflicted insert retries the lookup and returns the
// winner's id. DM groups carry no owner or admin semantics; both users are
// plain active members.
func (s *Service) GetOrCreateDirectChat(ctx context.Context, userA, userB int64) (int64, error) {
	if userA == userB {
		return 0, fmt.Errorf("cannot open a direct chat with yourself")
	}
	name := directChatName(userA, userB)

	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, err := s.store.GetDirectGroupByName(ctx, name)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return existing.ID, nil
		}

		code, err := NewJoinCode()
		if err != nil {
			return 0, err
		}
		group, err := s.store.CreateGroup(ctx, CreateGroupParams{
			Name:            name,
			OwnerID:         userA,
			JoinCode:        code,
			IsDirectMessage: true,
		})
		if errors.Is(err, ErrConflict) {
			// Lost the race (or hit a code collision): look up again.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to create direct chat: %w", err)
		}

		for _, userID := range []int64{userA, userB} {
			if _, err := s.insertMemberIdempotent(ctx, InsertMemberParams{
				GroupID: group.ID,
				UserID:  userID,
				Role:    MemberRoleMember,
				Status:  MemberStatusActive,
			}); err != nil {
				return 0, err
			}
		}
		return group.ID, nil
	}
	return 0, fmt.Errorf("failed to open direct chat: %w", ErrConflict)
}

// RegenerateJoinCode rotates a group's join code. Owner only; the old code
// stops working immediately.
func (s *Service) RegenerateJoinCode(ctx context.Context, groupID, requesterID int64) (string, error) {
	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return "", err
	}
	if err := CanChangeRole(requester); err != nil {
		return "", err
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := NewJoinCode()
		if err != nil {
			return "", err
		}
		err = s.store.UpdateJoinCode(ctx, groupID, code)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", fmt.Errorf("failed to regenerate join code: %w", ErrConflict)
}

// JoinResult reports the outcome of a join-by-code attempt.
type JoinResult struct {
	Status MemberStatus
	Group  *Group
}

// JoinByCode lets a user join the group behind a code. When the group
// requires approval the membership lands as pending and every owner/admin is
// notified of the join request; otherwise the user becomes active
// immediately.
func (s *Service) JoinByCode(ctx context.Context, code string, userID int64) (*JoinResult, error) {
	group, err := s.store.GetGroupByJoinCode(ctx, NormalizeJoinCode(code))
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrInvalidJoinCode
	}

	existing, err := s.store.GetMember(ctx, group.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == MemberStatusPending {
			return nil, ErrAlreadyPending
		}
		return nil, ErrAlreadyMember
	}

	status := MemberStatusActive
	if group.RequiresApproval {
		status = MemberStatusPending
	}

	if _, err := s.AddMember(ctx, group.ID, userID, MemberRoleMember, status, false); err != nil {
		return nil, err
	}

	if status == MemberStatusPending {
		s.notifyManagersOfJoinRequest(ctx, group, userID)
	}

	return &JoinResult{Status: status, Group: group}, nil
}

// notifyManagersOfJoinRequest tells every owner and admin about a pending
// join request. Best-effort.
func (s *Service) notifyManagersOfJoinRequest(ctx context.Context, group *Group, joinerID int64) {
	joinerName, err := s.identities.DisplayName(ctx, joinerID)
	if err != nil {
		s.logger.Warn("failed to resolve joiner display name", "user_id", joinerID, "error", err)
		joinerName = "Someone"
	}

	members, err := s.store.ListMembers(ctx, group.ID, MemberStatusActive)
	if err != nil {
		s.logger.Warn("failed to list managers for join request", "group_id", group.ID, "error", err)
		return
	}
	for _, m := range members {
		if m.Role != MemberRoleOwner && m.Role != MemberRoleAdmin {
			continue
		}
		s.logNotifyErr(
			s.notifier.JoinRequest(ctx, m.UserID, joinerName, group.Name, group.ID, joinerID),
			"join_request", m.UserID, group.ID,
		)
	}
}

// AddMember inserts a membership row. Re-adding an existing member is
// idempotent: the existing row is returned and no second notification goes
// out. Unless the row is the owner's, the user is notified — "invited"
// wording when pending, "added" wording when active.
func (s *Service) AddMember(ctx context.Context, groupID, userID int64, role MemberRole, status MemberStatus, canManage bool) (*Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if status != MemberStatusActive && status != MemberStatusPending {
		return nil, ErrInvalidStatus
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	// Owner rows always carry full manage rights.
	if role == MemberRoleOwner {
		canManage = true
	}

	member, existed, err := s.insertMemberReportingExisting(ctx, InsertMemberParams{
		GroupID:          groupID,
		UserID:           userID,
		Role:             role,
		Status:           status,
		CanManageMembers: canManage,
	})
	if err != nil {
		return nil, err
	}

	if !existed && role != MemberRoleOwner {
		if status == MemberStatusPending {
			s.logNotifyErr(s.notifier.GroupInvite(ctx, userID, group.Name, group.ID), "group_invite", userID, group.ID)
		} else {
			s.logNotifyErr(s.notifier.MemberAdded(ctx, userID, group.Name, group.ID), "member_added", userID, group.ID)
		}
	}

	return member, nil
}

func (s *Service) insertMemberIdempotent(ctx context.Context, p InsertMemberParams) (*Membership, error) {
	member, _, err := s.insertMemberReportingExisting(ctx, p)
	return member, err
}

// insertMemberReportingExisting inserts a row, converging on the existing one
// when the (group_id, user_id) uniqueness constraint fires.
func (s *Service) insertMemberReportingExisting(ctx context.Context, p InsertMemberParams) (*Membership, bool, error) {
	member, err := s.store.InsertMember(ctx, p)
	if errors.Is(err, ErrConflict) {
		existing, getErr := s.store.GetMember(ctx, p.GroupID, p.UserID)
		if getErr != nil {
			return nil, false, getErr
		}
		if existing == nil {
			// Row deleted between conflict and fetch; surface the conflict.
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return member, false, nil
}

// RemoveMember deletes the target's membership after checking the requester
// may do so. Denials carry the specific reason. The removed user is not
// notified.
func (s *Service) RemoveMember(ctx context.Context, groupID, targetUserID, requesterID int64) error {
	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return err
	}
	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMemberNotFound
	}
	if err := CanRemove(requester, target); err != nil {
		return err
	}
	return s.store.DeleteMember(ctx, groupID, targetUserID)
}

// LeaveGroup removes the caller's own membership. No permission check — any
// member (including one still pending) may leave — but the owner's row is
// permanent and cannot be removed this way.
func (s *Service) LeaveGroup(ctx context.Context, groupID, userID int64) error {
	member, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrMemberNotFound
	}
	if member.Role == MemberRoleOwner {
		return ErrOwnerCannotLeave
	}
	return s.store.DeleteMember(ctx, groupID, userID)
}

// UpdateMemberRole changes a member's role between admin and member. Owner
// only; the owner's own row can never be changed. Demoting an admin clears
// can_manage_members in the same write.
func (s *Service) UpdateMemberRole(ctx context.Context, groupID, targetUserID int64, newRole MemberRole, requesterID int64) (*Membership, error) {
	if newRole != MemberRoleAdmin && newRole != MemberRoleMember {
		return nil, ErrInvalidRole
	}

	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := CanChangeRole(requester); err != nil {
		return nil, err
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if target.Role == MemberRoleOwner {
		return nil, ErrCannotChangeOwnerRole
	}

	canManage := false
	if newRole == MemberRoleAdmin {
		canManage = target.CanManageMembers
	}

	member, err := s.store.UpdateMemberRole(ctx, groupID, targetUserID, newRole, canManage)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// ToggleAdminPermission flips an admin's can_manage_members delegation.
// Owner only; the target must currently hold the admin role.
func (s *Service) ToggleAdminPermission(ctx context.Context, groupID, adminUserID int64, canManage bool, requesterID int64) (*Membership, error) {
	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetMember(ctx, groupID, adminUserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if err := CanToggleAdminPermission(requester, target); err != nil {
		return nil, err
	}

	member, err := s.store.UpdateMemberPermission(ctx, groupID, adminUserID, canManage)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// MemberStatusRejected is an input-only status for UpdateMemberStatus: a
// rejected membership row is deleted, never stored.
const MemberStatusRejected MemberStatus = "REJECTED"

// UpdateMemberStatus resolves a pending join request. ACTIVE approves the
// member and notifies them; REJECTED deletes the row outright. The requester
// must hold member-management rights.
func (s *Service) UpdateMemberStatus(ctx context.Context, groupID, userID int64, status MemberStatus, requesterID int64) (*Membership, error) {
	if status != MemberStatusActive && status != MemberStatusRejected {
		return nil, ErrInvalidStatus
	}

	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsActive() {
		return nil, ErrNotAMember
	}
	if !CanManageMembers(requester) {
		return nil, ErrNoManagePermission
	}

	target, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrMemberNotFound
	}
	if target.Role == MemberRoleOwner {
		return nil, ErrCannotRemoveOwner
	}

	if status == MemberStatusRejected {
		if err := s.store.DeleteMember(ctx, groupID, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	member, err := s.store.UpdateMemberStatus(ctx, groupID, userID, MemberStatusActive)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err == nil && group != nil {
		s.logNotifyErr(s.notifier.GroupApproval(ctx, userID, group.Name, group.ID), "group_approval", userID, group.ID)
	}

	return member, nil
}

// GetPendingMembers returns the approval queue: every pending membership
// joined with displayable identity.
func (s *Service) GetPendingMembers(ctx context.Context, groupID int64) ([]*Membership, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID, MemberStatusPending)
}

// GetGroupMembers returns all active members, owner first, then admins, then
// members.
func (s *Service) GetGroupMembers(ctx context.Context, groupID int64) ([]*Membership, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID, MemberStatusActive)
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// ListByUserID retrieves all groups the user belongs to
func (s *Service) ListByUserID(ctx context.Context, userID int64, page, perPage int) ([]*Group, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.store.ListGroupsByUserID(ctx, userID, perPage, offset)
}

// Rename updates a group's display name. Requires member-management rights.
func (s *Service) Rename(ctx context.Context, groupID int64, name string, requesterID int64) (*Group, error) {
	requester, err := s.store.GetMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if !requester.IsActive() {
		return nil, ErrNotAMember
	}
	if !CanManageMembers(requester) {
		return nil, ErrNoManagePermission
	}

	group, err := s.store.RenameGroup(ctx, groupID, name)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

func (s *Service) requireGroup(ctx context.Context, groupID int64) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	return nil
}
