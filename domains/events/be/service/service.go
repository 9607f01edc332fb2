package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classbridge/ptohub/domains/events/be/repo"
	"github.com/classbridge/ptohub/platform/go/persistence"
)

// Domain sentinel errors.
var ErrNotFound = errors.New("event not found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Event represents the domain view of an event record.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       uuid.UUID  `json:"org_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Status   *string
	Page     int
	PageSize int
}

// ListResult wraps a page of events with pagination metadata.
type ListResult struct {
	Events     []Event
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// CreateInput represents the payload required to create an event. The
// organization and creator are injected from the request context, never
// taken from the body.
type CreateInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Location    string     `json:"location" validate:"max=500"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft published cancelled"`
}

// UpdateInput encapsulates the modifiable fields; nil means unchanged.
type UpdateInput struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Location    *string    `json:"location,omitempty" validate:"omitempty,max=500"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=draft published cancelled"`
}

// Service defines the business operations for the events domain.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, createdBy string, input CreateInput) (Event, error)
	List(ctx context.Context, orgID uuid.UUID, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, orgID, eventID uuid.UUID) (Event, error)
	Update(ctx context.Context, orgID, eventID uuid.UUID, input UpdateInput) (Event, error)
	Delete(ctx context.Context, orgID, eventID uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New constructs an events Service instance backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("events repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, orgID uuid.UUID, createdBy string, input CreateInput) (Event, error) {
	if err := validate.Struct(input); err != nil {
		return Event{}, err
	}

	status := input.Status
	if status == "" {
		status = "draft"
	}

	record, err := s.repo.Create(ctx, persistence.CreateEventParams{
		OrgID:       orgID,
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      status,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return Event{}, err
	}
	return mapEvent(record), nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, opts ListOptions) (ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	repoParams := persistence.ListEventsParams{
		OrgID:    orgID,
		Page:     page,
		PageSize: pageSize,
	}
	if opts.Status != nil && strings.TrimSpace(*opts.Status) != "" {
		status := strings.TrimSpace(*opts.Status)
		repoParams.Status = &status
	}

	result, err := s.repo.List(ctx, repoParams)
	if err != nil {
		return ListResult{}, err
	}

	events := make([]Event, 0, len(result.Events))
	for _, record := range result.Events {
		events = append(events, mapEvent(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Events:     events,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, orgID, eventID uuid.UUID) (Event, error) {
	if eventID == uuid.Nil {
		return Event{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, orgID, eventID)
	if err != nil {
		return Event{}, mapPersistenceError(err)
	}
	return mapEvent(record), nil
}

func (s *service) Update(ctx context.Context, orgID, eventID uuid.UUID, input UpdateInput) (Event, error) {
	if eventID == uuid.Nil {
		return Event{}, ErrNotFound
	}
	if err := validate.Struct(input); err != nil {
		return Event{}, err
	}

	record, err := s.repo.Update(ctx, orgID, eventID, persistence.UpdateEventParams{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		Status:      input.Status,
	})
	if err != nil {
		return Event{}, mapPersistenceError(err)
	}
	return mapEvent(record), nil
}

func (s *service) Delete(ctx context.Context, orgID, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, orgID, eventID); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func mapEvent(record persistence.Event) Event {
	return Event{
		ID:          record.EventID,
		OrgID:       record.OrgID,
		Title:       record.Title,
		Description: record.Description,
		Location:    record.Location,
		StartsAt:    record.StartsAt,
		EndsAt:      record.EndsAt,
		Status:      record.Status,
		CreatedBy:   record.CreatedBy,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	if errors.Is(err, persistence.ErrEventNotFound) {
		return ErrNotFound
	}
	return err
}
