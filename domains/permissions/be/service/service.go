package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classbridge/ptohub/domains/permissions/be/repo"
	"github.com/classbridge/ptohub/platform/go/rbac"
)

// Domain sentinel errors.
var (
	ErrInvalidRole = errors.New("invalid role")
	ErrInvalidKey  = errors.New("invalid permission key")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Override is the client-facing view of a permission override.
type Override struct {
	PermissionKey string   `json:"permission_key"`
	MinRole       string   `json:"min_role"`
	SpecificUsers []string `json:"specific_users,omitempty"`
	Enabled       bool     `json:"enabled"`
}

// SetInput carries the override payload. Enabled defaults to true when
// omitted.
type SetInput struct {
	MinRole       string   `json:"min_role" validate:"required"`
	SpecificUsers []string `json:"specific_users,omitempty" validate:"omitempty,dive,min=1"`
	Enabled       *bool    `json:"enabled,omitempty"`
}

// Service defines the business operations for permission overrides.
type Service interface {
	List(ctx context.Context, orgID uuid.UUID) ([]Override, error)
	Set(ctx context.Context, orgID uuid.UUID, permissionKey string, input SetInput) (Override, error)
	Remove(ctx context.Context, orgID uuid.UUID, permissionKey string) error
}

type service struct {
	repo repo.Repository
}

// New wires the service with its repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("permissions repository is required")
	}
	return &service{repo: r}
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]Override, error) {
	overrides, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	out := make([]Override, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, toView(o))
	}
	return out, nil
}

func (s *service) Set(ctx context.Context, orgID uuid.UUID, permissionKey string, input SetInput) (Override, error) {
	permissionKey = strings.TrimSpace(permissionKey)
	if permissionKey == "" {
		return Override{}, ErrInvalidKey
	}
	if err := validate.Struct(input); err != nil {
		return Override{}, err
	}

	role, err := rbac.ParseRole(input.MinRole)
	if err != nil {
		return Override{}, ErrInvalidRole
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	override := rbac.Override{
		OrgID:         orgID,
		PermissionKey: permissionKey,
		MinRole:       role,
		SpecificUsers: input.SpecificUsers,
		Enabled:       enabled,
	}
	if err := s.repo.Upsert(ctx, override); err != nil {
		return Override{}, err
	}
	return toView(override), nil
}

func (s *service) Remove(ctx context.Context, orgID uuid.UUID, permissionKey string) error {
	permissionKey = strings.TrimSpace(permissionKey)
	if permissionKey == "" {
		return ErrInvalidKey
	}
	return s.repo.Delete(ctx, orgID, permissionKey)
}

func toView(o rbac.Override) Override {
	return Override{
		PermissionKey: o.PermissionKey,
		MinRole:       string(o.MinRole),
		SpecificUsers: o.SpecificUsers,
		Enabled:       o.Enabled,
	}
}
