package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge/ptohub/platform/go/orgctx"
)

const ProfilesTable = "profiles"

// ErrProfileConflict indicates a uniqueness violation (e.g. duplicated email).
var ErrProfileConflict = errors.New("profile conflict")

// Member is a profile row plus the organization tier, as served by the
// member-management endpoints.
type Member struct {
	UserID    string     `db:"user_id" json:"user_id"`
	OrgID     *uuid.UUID `db:"org_id" json:"org_id"`
	Email     string     `db:"email" json:"email"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Role      string     `db:"role" json:"role"`
	OrgTier   string     `db:"org_tier" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfileStore exposes persistence helpers for the profiles table. It
// backs both organization-context resolution and member management.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore returns a store instance.
func NewProfileStore(pool *pgxpool.Pool) (*ProfileStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ProfileStore{pool: pool}, nil
}

// ResolveProfile fetches the profile backing a user principal, joined with
// the owning organization's tier.
func (s *ProfileStore) ResolveProfile(ctx context.Context, userID string) (orgctx.Profile, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT p.user_id, p.org_id, p.email, p.first_name, p.last_name, p.role,
               COALESCE(o.tier, '')
        FROM %s p
        LEFT JOIN organizations o ON o.org_id = p.org_id
        WHERE p.user_id = $1
    `, ProfilesTable), userID)

	var profile orgctx.Profile
	err := row.Scan(
		&profile.UserID,
		&profile.OrgID,
		&profile.Email,
		&profile.FirstName,
		&profile.LastName,
		&profile.Role,
		&profile.OrgTier,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orgctx.Profile{}, orgctx.ErrProfileNotFound
		}
		return orgctx.Profile{}, fmt.Errorf("resolve profile: %w", err)
	}
	return profile, nil
}

// CreateMemberParams captures the fields required to insert a profile.
type CreateMemberParams struct {
	UserID    string
	OrgID     uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// CreateMember inserts a new profile and returns the persisted record.
func (s *ProfileStore) CreateMember(ctx context.Context, params CreateMemberParams) (Member, error) {
	if params.UserID == "" {
		return Member{}, errors.New("user id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (user_id, org_id, email, first_name, last_name, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING user_id, org_id, email, first_name, last_name, role, created_at, updated_at
    `, ProfilesTable),
		params.UserID,
		params.OrgID,
		strings.TrimSpace(strings.ToLower(params.Email)),
		strings.TrimSpace(params.FirstName),
		strings.TrimSpace(params.LastName),
		params.Role,
	)

	member, err := scanMember(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Member{}, ErrProfileConflict
		}
		return Member{}, err
	}
	return member, nil
}

// ListMembersParams captures filters and pagination for ListMembers.
type ListMembersParams struct {
	OrgID    uuid.UUID
	Page     int
	PageSize int
	Role     *string
}

// ListMembersResult includes the rows and the total count for pagination
// metadata.
type ListMembersResult struct {
	Members    []Member
	TotalItems int
}

// ListMembers returns an organization's profiles with pagination applied.
func (s *ProfileStore) ListMembers(ctx context.Context, params ListMembersParams) (ListMembersResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereParts := []string{"org_id = $1"}
	args := []any{params.OrgID}

	if params.Role != nil && strings.TrimSpace(*params.Role) != "" {
		args = append(args, strings.TrimSpace(*params.Role))
		whereParts = append(whereParts, fmt.Sprintf("role = $%d", len(args)))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", ProfilesTable, whereSQL)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListMembersResult{}, fmt.Errorf("count members: %w", err)
	}

	result := ListMembersResult{Members: []Member{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	query := fmt.Sprintf(`
        SELECT user_id, org_id, email, first_name, last_name, role, created_at, updated_at
        FROM %s
        WHERE %s
        ORDER BY last_name ASC, first_name ASC
        LIMIT $%d OFFSET $%d
    `, ProfilesTable, whereSQL, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return ListMembersResult{}, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		member, scanErr := scanMember(rows)
		if scanErr != nil {
			return ListMembersResult{}, fmt.Errorf("scan member: %w", scanErr)
		}
		members = append(members, member)
	}
	if err = rows.Err(); err != nil {
		return ListMembersResult{}, fmt.Errorf("iterate members: %w", err)
	}

	result.Members = members
	return result, nil
}

// GetMember returns a single organization member by user id.
func (s *ProfileStore) GetMember(ctx context.Context, orgID uuid.UUID, userID string) (Member, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT user_id, org_id, email, first_name, last_name, role, created_at, updated_at
        FROM %s WHERE org_id = $1 AND user_id = $2
    `, ProfilesTable), orgID, userID)

	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, orgctx.ErrProfileNotFound
		}
		return Member{}, err
	}
	return member, nil
}

// UpdateMemberRole changes a member's role within the organization.
func (s *ProfileStore) UpdateMemberRole(ctx context.Context, orgID uuid.UUID, userID, role string) (Member, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET role = $1, updated_at = NOW()
        WHERE org_id = $2 AND user_id = $3
        RETURNING user_id, org_id, email, first_name, last_name, role, created_at, updated_at
    `, ProfilesTable), role, orgID, userID)

	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, orgctx.ErrProfileNotFound
		}
		return Member{}, err
	}
	return member, nil
}

// DeleteMember removes a member from the organization.
func (s *ProfileStore) DeleteMember(ctx context.Context, orgID uuid.UUID, userID string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        DELETE FROM %s WHERE org_id = $1 AND user_id = $2
    `, ProfilesTable), orgID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orgctx.ErrProfileNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (Member, error) {
	var member Member
	err := row.Scan(
		&member.UserID,
		&member.OrgID,
		&member.Email,
		&member.FirstName,
		&member.LastName,
		&member.Role,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return Member{}, err
	}
	return member, nil
}
