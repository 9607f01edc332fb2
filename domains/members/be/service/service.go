package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classbridge/ptohub/domains/members/be/repo"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/rbac"
)

// Domain sentinel errors.
var (
	ErrNotFound    = errors.New("member not found")
	ErrConflict    = errors.New("member conflict")
	ErrSelf        = errors.New("cannot remove own membership")
	ErrInvalidRole = errors.New("invalid role")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Member represents the domain view of an organization member.
type Member struct {
	UserID    string    `json:"user_id"`
	OrgID     uuid.UUID `json:"org_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Role     *string
	Page     int
	PageSize int
}

// ListResult wraps a page of members with pagination metadata.
type ListResult struct {
	Members    []Member
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// CreateInput represents the payload required to add a member. The
// organization is injected from the request context.
type CreateInput struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Role      string `json:"role" validate:"required"`
}

// UpdateRoleInput changes a member's role.
type UpdateRoleInput struct {
	Role string `json:"role" validate:"required"`
}

// Service defines the business operations for the members domain.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (Member, error)
	List(ctx context.Context, orgID uuid.UUID, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, orgID uuid.UUID, userID string) (Member, error)
	UpdateRole(ctx context.Context, orgID uuid.UUID, userID string, input UpdateRoleInput) (Member, error)
	Delete(ctx context.Context, orgID uuid.UUID, actorID, userID string) error
}

type service struct {
	repo repo.Repository
}

// New constructs a members Service instance backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("members repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (Member, error) {
	if err := validate.Struct(input); err != nil {
		return Member{}, err
	}
	role, err := rbac.ParseRole(input.Role)
	if err != nil {
		return Member{}, ErrInvalidRole
	}

	record, err := s.repo.Create(ctx, persistence.CreateMemberParams{
		UserID:    strings.TrimSpace(input.UserID),
		OrgID:     orgID,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      string(role),
	})
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
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

	repoParams := persistence.ListMembersParams{
		OrgID:    orgID,
		Page:     page,
		PageSize: pageSize,
	}
	if opts.Role != nil && strings.TrimSpace(*opts.Role) != "" {
		role := strings.TrimSpace(*opts.Role)
		repoParams.Role = &role
	}

	result, err := s.repo.List(ctx, repoParams)
	if err != nil {
		return ListResult{}, err
	}

	members := make([]Member, 0, len(result.Members))
	for _, record := range result.Members {
		members = append(members, mapMember(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Members:    members,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, orgID uuid.UUID, userID string) (Member, error) {
	if strings.TrimSpace(userID) == "" {
		return Member{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, orgID, userID)
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
}

func (s *service) UpdateRole(ctx context.Context, orgID uuid.UUID, userID string, input UpdateRoleInput) (Member, error) {
	if strings.TrimSpace(userID) == "" {
		return Member{}, ErrNotFound
	}
	if err := validate.Struct(input); err != nil {
		return Member{}, err
	}
	role, err := rbac.ParseRole(input.Role)
	if err != nil {
		return Member{}, ErrInvalidRole
	}

	record, err := s.repo.UpdateRole(ctx, orgID, userID, string(role))
	if err != nil {
		return Member{}, mapPersistenceError(err)
	}
	return mapMember(record), nil
}

func (s *service) Delete(ctx context.Context, orgID uuid.UUID, actorID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNotFound
	}
	if actorID != "" && actorID == userID {
		return ErrSelf
	}
	if err := s.repo.Delete(ctx, orgID, userID); err != nil {
		return mapPersistenceError(err)
	}
	return nil
}

func mapMember(record persistence.Member) Member {
	member := Member{
		UserID:    record.UserID,
		Email:     record.Email,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.OrgID != nil {
		member.OrgID = *record.OrgID
	}
	return member
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, orgctx.ErrProfileNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrProfileConflict):
		return ErrConflict
	default:
		return err
	}
}
