package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/persistence"
)

// Repository defines the persistence operations required by the apikeys service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateAPIKeyParams) (auth.APIKey, error)
	List(ctx context.Context, orgID uuid.UUID) ([]auth.APIKey, error)
	Revoke(ctx context.Context, orgID uuid.UUID, keyID string) error
}

type postgresRepository struct {
	store *persistence.APIKeyStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.APIKeyStore) Repository {
	if store == nil {
		panic("api key store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateAPIKeyParams) (auth.APIKey, error) {
	return r.store.CreateAPIKey(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, orgID uuid.UUID) ([]auth.APIKey, error) {
	return r.store.ListAPIKeys(ctx, orgID)
}

func (r *postgresRepository) Revoke(ctx context.Context, orgID uuid.UUID, keyID string) error {
	return r.store.RevokeAPIKey(ctx, orgID, keyID)
}
