package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/rbac"
)

// Repository defines the persistence operations required by the permissions service.
type Repository interface {
	List(ctx context.Context, orgID uuid.UUID) ([]rbac.Override, error)
	Upsert(ctx context.Context, override rbac.Override) error
	Delete(ctx context.Context, orgID uuid.UUID, permissionKey string) error
}

type postgresRepository struct {
	store *persistence.OverrideStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.OverrideStore) Repository {
	if store == nil {
		panic("override store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, orgID uuid.UUID) ([]rbac.Override, error) {
	return r.store.ListOverrides(ctx, orgID)
}

func (r *postgresRepository) Upsert(ctx context.Context, override rbac.Override) error {
	return r.store.UpsertOverride(ctx, override)
}

func (r *postgresRepository) Delete(ctx context.Context, orgID uuid.UUID, permissionKey string) error {
	return r.store.DeleteOverride(ctx, orgID, permissionKey)
}
