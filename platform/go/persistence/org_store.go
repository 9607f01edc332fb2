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
)

// OrganizationsTable is the physical table name.
const OrganizationsTable = "organizations"

var (
	// ErrOrganizationNotFound indicates no row matched the lookup.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrOrganizationConflict indicates the slug is already taken.
	ErrOrganizationConflict = errors.New("organization conflict")
)

// Organization is one tenant row. The tier drives rate-limit quotas for
// every member of the organization.
type Organization struct {
	OrgID     uuid.UUID `db:"org_id" json:"org_id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Tier      string    `db:"tier" json:"tier"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrgStore manages organization rows.
type OrgStore struct {
	pool *pgxpool.Pool
}

// NewOrgStore returns a store instance.
func NewOrgStore(pool *pgxpool.Pool) (*OrgStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &OrgStore{pool: pool}, nil
}

// CreateOrganizationParams carries the insert payload. Tier defaults to
// free when empty.
type CreateOrganizationParams struct {
	Name string
	Slug string
	Tier string
}

// CreateOrganization inserts a new organization and returns the
// persisted record.
func (s *OrgStore) CreateOrganization(ctx context.Context, params CreateOrganizationParams) (Organization, error) {
	if params.Name == "" {
		return Organization{}, errors.New("name is required")
	}
	slug := strings.TrimSpace(strings.ToLower(params.Slug))
	if slug == "" {
		return Organization{}, errors.New("slug is required")
	}
	tier := params.Tier
	if tier == "" {
		tier = "free"
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (name, slug, tier)
        VALUES ($1, $2, $3)
        RETURNING org_id, name, slug, tier, created_at, updated_at
    `, OrganizationsTable), params.Name, slug, tier)

	org, err := scanOrganization(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Organization{}, ErrOrganizationConflict
		}
		return Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// GetOrganizationBySlug fetches one organization by its unique slug.
func (s *OrgStore) GetOrganizationBySlug(ctx context.Context, slug string) (Organization, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT org_id, name, slug, tier, created_at, updated_at
        FROM %s
        WHERE slug = $1
    `, OrganizationsTable), strings.TrimSpace(strings.ToLower(slug)))

	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrOrganizationNotFound
		}
		return Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// ListOrganizations returns every organization ordered by name.
func (s *OrgStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT org_id, name, slug, tier, created_at, updated_at
        FROM %s
        ORDER BY name
    `, OrganizationsTable))
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateOrganizationTier moves an organization to a new subscription
// tier; quota changes take effect on the next rate-limit window.
func (s *OrgStore) UpdateOrganizationTier(ctx context.Context, orgID uuid.UUID, tier string) (Organization, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET tier = $2, updated_at = NOW()
        WHERE org_id = $1
        RETURNING org_id, name, slug, tier, created_at, updated_at
    `, OrganizationsTable), orgID, tier)

	org, err := scanOrganization(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrOrganizationNotFound
		}
		return Organization{}, fmt.Errorf("update organization tier: %w", err)
	}
	return org, nil
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var org Organization
	err := row.Scan(&org.OrgID, &org.Name, &org.Slug, &org.Tier, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}
