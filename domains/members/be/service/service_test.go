package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/persistence"
)

type mockRepository struct {
	createFn     func(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error)
	listFn       func(ctx context.Context, params persistence.ListMembersParams) (persistence.ListMembersResult, error)
	getFn        func(ctx context.Context, orgID uuid.UUID, userID string) (persistence.Member, error)
	updateRoleFn func(ctx context.Context, orgID uuid.UUID, userID, role string) (persistence.Member, error)
	deleteFn     func(ctx context.Context, orgID uuid.UUID, userID string) error
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateMemberParams) (persistence.Member, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) List(ctx context.Context, params persistence.ListMembersParams) (persistence.ListMembersResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, params)
}

func (m *mockRepository) Get(ctx context.Context, orgID uuid.UUID, userID string) (persistence.Member, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, orgID, userID)
}

func (m *mockRepository) UpdateRole(ctx context.Context, orgID uuid.UUID, userID, role string) (persistence.Member, error) {
	if m.updateRoleFn == nil {
		panic("updateRoleFn not configured")
	}
	return m.updateRoleFn(ctx, orgID, userID, role)
}

func (m *mockRepository) Delete(ctx context.Context, orgID uuid.UUID, userID string) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, orgID, userID)
}

func TestServiceCreateRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		UserID: "u9",
		Email:  "parent@example.com",
		Role:   "superuser",
	})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestServiceCreateInjectsOrg(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	now := time.Now().UTC()
	repository := &mockRepository{}
	repository.createFn = func(_ context.Context, params persistence.CreateMemberParams) (persistence.Member, error) {
		require.Equal(t, orgID, params.OrgID)
		require.Equal(t, "volunteer", params.Role)
		return persistence.Member{
			UserID:    params.UserID,
			OrgID:     &params.OrgID,
			Email:     params.Email,
			Role:      params.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}

	svc := New(repository)
	created, err := svc.Create(context.Background(), orgID, CreateInput{
		UserID: "u9",
		Email:  "parent@example.com",
		Role:   "volunteer",
	})
	require.NoError(t, err)
	require.Equal(t, orgID, created.OrgID)
}

func TestServiceDeleteGuards(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{}
	repository.deleteFn = func(context.Context, uuid.UUID, string) error {
		return orgctx.ErrProfileNotFound
	}

	svc := New(repository)

	require.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), "u1", "u1"), ErrSelf)
	require.ErrorIs(t, svc.Delete(context.Background(), uuid.New(), "u1", "u2"), ErrNotFound)
}
