package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classbridge/ptohub/domains/apikeys/be/repo"
	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/persistence"
	"github.com/classbridge/ptohub/platform/go/ratelimit"
)

// Domain sentinel errors.
var ErrNotFound = errors.New("api key not found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Key is the client-facing view of an API key. The secret never appears
// here; it is returned exactly once at issue time.
type Key struct {
	KeyID       string     `json:"key_id"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	Tier        string     `json:"tier"`
	Active      bool       `json:"active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IssuedKey is the one-time issue response carrying the presentable
// secret.
type IssuedKey struct {
	Key
	// Secret is "<keyID>.<secret>", shown once and never retrievable.
	Secret string `json:"secret"`
}

// CreateInput represents the payload required to issue a key.
type CreateInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Permissions []string   `json:"permissions" validate:"required,min=1,dive,min=1"`
	Tier        string     `json:"tier" validate:"omitempty,oneof=free standard premium enterprise"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Service defines the business operations for the apikeys domain.
type Service interface {
	Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (IssuedKey, error)
	List(ctx context.Context, orgID uuid.UUID) ([]Key, error)
	Revoke(ctx context.Context, orgID uuid.UUID, keyID string) error
}

type service struct {
	repo repo.Repository
}

// New constructs an apikeys Service instance backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("apikeys repository is required")
	}
	return &service{repo: r}
}

func (s *service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (IssuedKey, error) {
	if err := validate.Struct(input); err != nil {
		return IssuedKey{}, err
	}

	tier := string(ratelimit.ParseTier(input.Tier))

	keyID, secret, secretHash, err := auth.GenerateKey()
	if err != nil {
		return IssuedKey{}, err
	}

	record, err := s.repo.Create(ctx, persistence.CreateAPIKeyParams{
		KeyID:       keyID,
		SecretHash:  secretHash,
		OrgID:       orgID,
		Name:        input.Name,
		Permissions: input.Permissions,
		Tier:        tier,
		ExpiresAt:   input.ExpiresAt,
	})
	if err != nil {
		return IssuedKey{}, err
	}

	return IssuedKey{
		Key:    mapKey(record),
		Secret: keyID + "." + secret,
	}, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]Key, error) {
	records, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(records))
	for _, record := range records {
		keys = append(keys, mapKey(record))
	}
	return keys, nil
}

func (s *service) Revoke(ctx context.Context, orgID uuid.UUID, keyID string) error {
	if keyID == "" {
		return ErrNotFound
	}
	if err := s.repo.Revoke(ctx, orgID, keyID); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func mapKey(record auth.APIKey) Key {
	return Key{
		KeyID:       record.KeyID,
		Name:        record.Name,
		Permissions: record.Permissions,
		Tier:        record.Tier,
		Active:      record.Active,
		ExpiresAt:   record.ExpiresAt,
		LastUsedAt:  record.LastUsedAt,
		CreatedAt:   record.CreatedAt,
	}
}
