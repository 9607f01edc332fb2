package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/persistence"
)

// Repository defines the persistence operations required by the events service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateEventParams) (persistence.Event, error)
	List(ctx context.Context, params persistence.ListEventsParams) (persistence.ListEventsResult, error)
	Get(ctx context.Context, orgID, eventID uuid.UUID) (persistence.Event, error)
	Update(ctx context.Context, orgID, eventID uuid.UUID, params persistence.UpdateEventParams) (persistence.Event, error)
	Delete(ctx context.Context, orgID, eventID uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.EventStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.EventStore) Repository {
	if store == nil {
		panic("event store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateEventParams) (persistence.Event, error) {
	return r.store.CreateEvent(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, params persistence.ListEventsParams) (persistence.ListEventsResult, error) {
	return r.store.ListEvents(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, orgID, eventID uuid.UUID) (persistence.Event, error) {
	return r.store.GetEvent(ctx, orgID, eventID)
}

func (r *postgresRepository) Update(ctx context.Context, orgID, eventID uuid.UUID, params persistence.UpdateEventParams) (persistence.Event, error) {
	return r.store.UpdateEvent(ctx, orgID, eventID, params)
}

func (r *postgresRepository) Delete(ctx context.Context, orgID, eventID uuid.UUID) error {
	return r.store.DeleteEvent(ctx, orgID, eventID)
}
