package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Repository handles group and membership data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateGroupParams carries everything needed to persist a new group.
type CreateGroupParams struct {
	Name             string
	OwnerID          int64
	JoinCode         string
	RequiresApproval bool
	IsDirectMessage  bool
}

// CreateGroup inserts a new group. For regular groups the owner's membership
// row (OWNER/ACTIVE, full manage rights) is created in the same transaction,
// so a group can never be observed without its owner. Direct-message groups
// get no owner membership; callers add both participants as plain members.
// Returns ErrConflict when a uniqueness constraint rejects the insert (DM
// name dedup, join-code collision).
func (r *Repository) CreateGroup(ctx context.Context, p CreateGroupParams) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO groups (name, owner_id, join_code, requires_approval, is_direct_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, owner_id, join_code, requires_approval, is_direct_message, created_at
	`

	group := &Group{}
	err = tx.QueryRowContext(ctx, query, p.Name, p.OwnerID, p.JoinCode, p.RequiresApproval, p.IsDirectMessage).Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.JoinCode,
		&group.RequiresApproval,
		&group.IsDirectMessage,
		&group.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	if !p.IsDirectMessage {
		memberQuery := `
			INSERT INTO group_members (group_id, user_id, role, status, can_manage_members)
			VALUES ($1, $2, $3, $4, true)
		`
		if _, err := tx.ExecContext(ctx, memberQuery, group.ID, p.OwnerID, MemberRoleOwner, MemberStatusActive); err != nil {
			return nil, fmt.Errorf("failed to create owner membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	return group, nil
}

// GetGroup retrieves a group by its ID
func (r *Repository) GetGroup(ctx context.Context, id int64) (*Group, error) {
	query := `
		SELECT id, name, owner_id, join_code, requires_approval, is_direct_message, created_at
		FROM groups
		WHERE id = $1
	`
	return r.scanGroup(r.db.QueryRowContext(ctx, query, id))
}

// GetGroupByJoinCode retrieves a group by its join code. The caller is
// expected to normalize the code first; codes are stored uppercase.
func (r *Repository) GetGroupByJoinCode(ctx context.Context, code string) (*Group, error) {
	query := `
		SELECT id, name, owner_id, join_code, requires_approval, is_direct_message, created_at
		FROM groups
		WHERE join_code = $1 AND is_direct_message = false
	`
	return r.scanGroup(r.db.QueryRowContext(ctx, query, code))
}

// GetDirectGroupByName retrieves a direct-message group by its canonical name
func (r *Repository) GetDirectGroupByName(ctx context.Context, name string) (*Group, error) {
	query := `
		SELECT id, name, owner_id, join_code, requires_approval, is_direct_message, created_at
		FROM groups
		WHERE name = $1 AND is_direct_message = true
	`
	return r.scanGroup(r.db.QueryRowContext(ctx, query, name))
}

func (r *Repository) scanGroup(row *sql.Row) (*Group, error) {
	group := &Group{}
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.JoinCode,
		&group.RequiresApproval,
		&group.IsDirectMessage,
		&group.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroupsByUserID retrieves all groups the user is an active member of
func (r *Repository) ListGroupsByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Group, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(DISTINCT g.id)
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.status = $2
	`
	if err := r.db.QueryRowContext(ctx, countQuery, userID, MemberStatusActive).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT g.id, g.name, g.owner_id, g.join_code, g.requires_approval, g.is_direct_message, g.created_at
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1 AND gm.status = $2
		ORDER BY g.created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, userID, MemberStatusActive, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		group := &Group{}
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.OwnerID,
			&group.JoinCode,
			&group.RequiresApproval,
			&group.IsDirectMessage,
			&group.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, total, nil
}

// RenameGroup updates a group's display name
func (r *Repository) RenameGroup(ctx context.Context, id int64, name string) (*Group, error) {
	query := `
		UPDATE groups
		SET name = $2
		WHERE id = $1
		RETURNING id, name, owner_id, join_code, requires_approval, is_direct_message, created_at
	`
	return r.scanGroup(r.db.QueryRowContext(ctx, query, id, name))
}

// UpdateJoinCode replaces a group's join code, invalidating the old one.
// Returns ErrConflict when the new code collides with another group's.
func (r *Repository) UpdateJoinCode(ctx context.Context, id int64, code string) error {
	query := `UPDATE groups SET join_code = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, code)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to update join code: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}

	return nil
}

// InsertMemberParams carries a new membership row.
type InsertMemberParams struct {
	GroupID          int64
	UserID           int64
	Role             MemberRole
	Status           MemberStatus
	CanManageMembers bool
}

// InsertMember adds a membership row. Returns ErrConflict when the
// (group_id, user_id) pair already exists.
func (r *Repository) InsertMember(ctx context.Context, p InsertMemberParams) (*Membership, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, role, status, can_manage_members)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, group_id, user_id, role, status, can_manage_members, joined_at
	`

	member := &Membership{}
	err := r.db.QueryRowContext(ctx, query, p.GroupID, p.UserID, p.Role, p.Status, p.CanManageMembers).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.Status,
		&member.CanManageMembers,
		&member.JoinedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	return member, nil
}

// GetMember retrieves a specific member of a group, joined with identity
func (r *Repository) GetMember(ctx context.Context, groupID, userID int64) (*Membership, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.status, gm.can_manage_members, gm.joined_at,
		       u.username, u.email
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1 AND gm.user_id = $2
	`

	member := &Membership{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.Status,
		&member.CanManageMembers,
		&member.JoinedAt,
		&member.Username,
		&member.Email,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// ListMembers retrieves all members of a group with the given status, ordered
// role-first (owner, admins, members) then by join time.
func (r *Repository) ListMembers(ctx context.Context, groupID int64, status MemberStatus) ([]*Membership, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.status, gm.can_manage_members, gm.joined_at,
		       u.username, u.email
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1 AND gm.status = $2
		ORDER BY CASE gm.role WHEN 'OWNER' THEN 0 WHEN 'ADMIN' THEN 1 ELSE 2 END, gm.joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		member := &Membership{}
		if err := rows.Scan(
			&member.ID,
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.Status,
			&member.CanManageMembers,
			&member.JoinedAt,
			&member.Username,
			&member.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, nil
}

// UpdateMemberRole sets a member's role and permission flag in one write, so
// a demoted admin can never keep a stale manage flag.
func (r *Repository) UpdateMemberRole(ctx context.Context, groupID, userID int64, role MemberRole, canManage bool) (*Membership, error) {
	query := `
		UPDATE group_members
		SET role = $3, can_manage_members = $4
		WHERE group_id = $1 AND user_id = $2
		RETURNING id, group_id, user_id, role, status, can_manage_members, joined_at
	`
	return r.scanMember(r.db.QueryRowContext(ctx, query, groupID, userID, role, canManage))
}

// UpdateMemberPermission sets only the can_manage_members flag
func (r *Repository) UpdateMemberPermission(ctx context.Context, groupID, userID int64, canManage bool) (*Membership, error) {
	query := `
		UPDATE group_members
		SET can_manage_members = $3
		WHERE group_id = $1 AND user_id = $2
		RETURNING id, group_id, user_id, role, status, can_manage_members, joined_at
	`
	return r.scanMember(r.db.QueryRowContext(ctx, query, groupID, userID, canManage))
}

// UpdateMemberStatus sets a member's status
func (r *Repository) UpdateMemberStatus(ctx context.Context, groupID, userID int64, status MemberStatus) (*Membership, error) {
	query := `
		UPDATE group_members
		SET status = $3
		WHERE group_id = $1 AND user_id = $2
		RETURNING id, group_id, user_id, role, status, can_manage_members, joined_at
	`
	return r.scanMember(r.db.QueryRowContext(ctx, query, groupID, userID, status))
}

func (r *Repository) scanMember(row *sql.Row) (*Membership, error) {
	member := &Membership{}
	err := row.Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.Status,
		&member.CanManageMembers,
		&member.JoinedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	return member, nil
}

// DeleteMember removes a membership row
func (r *Repository) DeleteMember(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}
