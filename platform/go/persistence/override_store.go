package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge/ptohub/platform/go/rbac"
)

const PermissionOverridesTable = "permission_overrides"

// OverrideStore exposes per-organization permission overrides. It
// implements rbac.OverrideStore.
type OverrideStore struct {
	pool *pgxpool.Pool
}

// NewOverrideStore returns a store instance.
func NewOverrideStore(pool *pgxpool.Pool) (*OverrideStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &OverrideStore{pool: pool}, nil
}

// GetOverride fetches the override row for (org, permission key).
// found=false means no row exists and the template default applies.
func (s *OverrideStore) GetOverride(ctx context.Context, orgID uuid.UUID, permissionKey string) (rbac.Override, bool, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT org_id, permission_key, min_role, specific_users, enabled
        FROM %s WHERE org_id = $1 AND permission_key = $2
    `, PermissionOverridesTable), orgID, permissionKey)

	var override rbac.Override
	var minRole string
	err := row.Scan(
		&override.OrgID,
		&override.PermissionKey,
		&minRole,
		&override.SpecificUsers,
		&override.Enabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Override{}, false, nil
		}
		return rbac.Override{}, false, fmt.Errorf("get permission override: %w", err)
	}

	role, err := rbac.ParseRole(minRole)
	if err != nil {
		return rbac.Override{}, false, fmt.Errorf("get permission override: %w", err)
	}
	override.MinRole = role
	return override, true, nil
}

// ListOverrides returns every override an organization has configured,
// ordered by permission key.
func (s *OverrideStore) ListOverrides(ctx context.Context, orgID uuid.UUID) ([]rbac.Override, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT org_id, permission_key, min_role, specific_users, enabled
        FROM %s WHERE org_id = $1
        ORDER BY permission_key
    `, PermissionOverridesTable), orgID)
	if err != nil {
		return nil, fmt.Errorf("list permission overrides: %w", err)
	}
	defer rows.Close()

	var overrides []rbac.Override
	for rows.Next() {
		var override rbac.Override
		var minRole string
		if err := rows.Scan(
			&override.OrgID,
			&override.PermissionKey,
			&minRole,
			&override.SpecificUsers,
			&override.Enabled,
		); err != nil {
			return nil, fmt.Errorf("scan permission override: %w", err)
		}
		role, err := rbac.ParseRole(minRole)
		if err != nil {
			return nil, fmt.Errorf("list permission overrides: %w", err)
		}
		override.MinRole = role
		overrides = append(overrides, override)
	}
	return overrides, rows.Err()
}

// UpsertOverride inserts or replaces the override for (org, permission key).
func (s *OverrideStore) UpsertOverride(ctx context.Context, override rbac.Override) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (org_id, permission_key, min_role, specific_users, enabled)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (org_id, permission_key) DO UPDATE
        SET min_role = EXCLUDED.min_role,
            specific_users = EXCLUDED.specific_users,
            enabled = EXCLUDED.enabled,
            updated_at = NOW()
    `, PermissionOverridesTable),
		override.OrgID,
		override.PermissionKey,
		string(override.MinRole),
		override.SpecificUsers,
		override.Enabled,
	)
	if err != nil {
		return fmt.Errorf("upsert permission override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override, restoring the template default.
func (s *OverrideStore) DeleteOverride(ctx context.Context, orgID uuid.UUID, permissionKey string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        DELETE FROM %s WHERE org_id = $1 AND permission_key = $2
    `, PermissionOverridesTable), orgID, permissionKey)
	if err != nil {
		return fmt.Errorf("delete permission override: %w", err)
	}
	return nil
}
