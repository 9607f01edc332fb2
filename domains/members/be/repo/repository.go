package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/persistence"
)

// Repository defines the persistence operations required by the members service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error)
	List(ctx context.Context, params persistence.ListMembersParams) (persistence.ListMembersResult, error)
	Get(ctx context.Context, orgID uuid.UUID, userID string) (persistence.Member, error)
	UpdateRole(ctx context.Context, orgID uuid.UUID, userID, role string) (persistence.Member, error)
	Delete(ctx context.Context, orgID uuid.UUID, userID string) error
}

type postgresRepository struct {
	store *persistence.ProfileStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.ProfileStore) Repository {
	if store == nil {
		panic("profile store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error) {
	return r.store.CreateMember(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListMembersParams) (persistence.ListMembersResult, error) {
	return r.store.ListMembers(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, orgID uuid.UUID, userID string) (persistence.Member, error) {
	return r.store.GetMember(ctx, orgID, userID)
}

func (r *postgresRepository) UpdateRole(ctx context.Context, orgID uuid.UUID, userID, role string) (persistence.Member, error) {
	return r.store.UpdateMemberRole(ctx, orgID, userID, role)
}

func (r *postgresRepository) Delete(ctx context.Context, orgID uuid.UUID, userID string) error {
	return r.store.DeleteMember(ctx, orgID, userID)
}
