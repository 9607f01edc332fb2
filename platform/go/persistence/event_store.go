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

const EventsTable = "events"

// ErrEventNotFound indicates a missing event record.
var ErrEventNotFound = errors.New("event not found")

// Event represents a row in the events table.
type Event struct {
	EventID     uuid.UUID  `db:"event_id" json:"event_id"`
	OrgID       uuid.UUID  `db:"org_id" json:"org_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Location    string     `db:"location" json:"location"`
	StartsAt    time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at"`
	Status      string     `db:"status" json:"status"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// EventStore exposes persistence helpers for the events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore returns a store instance.
func NewEventStore(pool *pgxpool.Pool) (*EventStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &EventStore{pool: pool}, nil
}

// CreateEventParams captures the fields required to insert an event.
type CreateEventParams struct {
	OrgID       uuid.UUID
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	EndsAt      *time.Time
	Status      string
	CreatedBy   string
}

// CreateEvent inserts a new event and returns the persisted record.
func (s *EventStore) CreateEvent(ctx context.Context, params CreateEventParams) (Event, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (org_id, title, description, location, starts_at, ends_at, status, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING event_id, org_id, title, description, location, starts_at, ends_at, status, created_by, created_at, updated_at
    `, EventsTable),
		params.OrgID,
		strings.TrimSpace(params.Title),
		strings.TrimSpace(params.Description),
		strings.TrimSpace(params.Location),
		params.StartsAt,
		params.EndsAt,
		params.Status,
		params.CreatedBy,
	)

	return scanEvent(row)
}

// ListEventsParams captures filters and pagination for ListEvents.
type ListEventsParams struct {
	OrgID    uuid.UUID
	Page     int
	PageSize int
	Status   *string
}

// ListEventsResult includes the rows and the total count for pagination
// metadata.
type ListEventsResult struct {
	Events     []Event
	TotalItems int
}

// ListEvents returns an organization's events with pagination applied.
func (s *EventStore) ListEvents(ctx context.Context, params ListEventsParams) (ListEventsResult, error) {
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

	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		args = append(args, strings.TrimSpace(*params.Status))
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	whereSQL := strings.Join(whereParts, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", EventsTable, whereSQL)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListEventsResult{}, fmt.Errorf("count events: %w", err)
	}

	result := ListEventsResult{Events: []Event{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	query := fmt.Sprintf(`
        SELECT event_id, org_id, title, description, location, starts_at, ends_at, status, created_by, created_at, updated_at
        FROM %s
        WHERE %s
        ORDER BY starts_at ASC
        LIMIT $%d OFFSET $%d
    `, EventsTable, whereSQL, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return ListEventsResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return ListEventsResult{}, fmt.Errorf("scan event: %w", scanErr)
		}
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return ListEventsResult{}, fmt.Errorf("iterate events: %w", err)
	}

	result.Events = events
	return result, nil
}

// GetEvent returns a single event scoped to the organization.
func (s *EventStore) GetEvent(ctx context.Context, orgID, eventID uuid.UUID) (Event, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT event_id, org_id, title, description, location, starts_at, ends_at, status, created_by, created_at, updated_at
        FROM %s WHERE org_id = $1 AND event_id = $2
    `, EventsTable), orgID, eventID)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, err
	}
	return event, nil
}

// UpdateEventParams represents the editable fields; nil means unchanged.
type UpdateEventParams struct {
	Title       *string
	Description *string
	Location    *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	Status      *string
}

// UpdateEvent applies the provided fields and returns the updated record.
func (s *EventStore) UpdateEvent(ctx context.Context, orgID, eventID uuid.UUID, params UpdateEventParams) (Event, error) {
	setParts := []string{}
	var args []any

	appendSet := func(column string, value any) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Title != nil {
		appendSet("title", strings.TrimSpace(*params.Title))
	}
	if params.Description != nil {
		appendSet("description", strings.TrimSpace(*params.Description))
	}
	if params.Location != nil {
		appendSet("location", strings.TrimSpace(*params.Location))
	}
	if params.StartsAt != nil {
		appendSet("starts_at", *params.StartsAt)
	}
	if params.EndsAt != nil {
		appendSet("ends_at", *params.EndsAt)
	}
	if params.Status != nil {
		appendSet("status", *params.Status)
	}

	if len(setParts) == 0 {
		return Event{}, errors.New("no fields to update")
	}

	args = append(args, orgID, eventID)

	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE org_id = $%d AND event_id = $%d
        RETURNING event_id, org_id, title, description, location, starts_at, ends_at, status, created_by, created_at, updated_at
    `, EventsTable, strings.Join(setParts, ", "), len(args)-1, len(args))

	event, err := scanEvent(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrEventNotFound
		}
		return Event{}, err
	}
	return event, nil
}

// DeleteEvent removes an event scoped to the organization.
func (s *EventStore) DeleteEvent(ctx context.Context, orgID, eventID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        DELETE FROM %s WHERE org_id = $1 AND event_id = $2
    `, EventsTable), orgID, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var event Event
	err := row.Scan(
		&event.EventID,
		&event.OrgID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.StartsAt,
		&event.EndsAt,
		&event.Status,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	return event, nil
}
