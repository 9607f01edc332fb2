package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/ptohub/platform/go/rbac"
)

type mockRepository struct {
	listFn   func(ctx context.Context, orgID uuid.UUID) ([]rbac.Override, error)
	upsertFn func(ctx context.Context, override rbac.Override) error
	deleteFn func(ctx context.Context, orgID uuid.UUID, permissionKey string) error
}

func (m *mockRepository) List(ctx context.Context, orgID uuid.UUID) ([]rbac.Override, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, orgID)
}

func (m *mockRepository) Upsert(ctx context.Context, override rbac.Override) error {
	if m.upsertFn == nil {
		panic("upsertFn not configured")
	}
	return m.upsertFn(ctx, override)
}

func (m *mockRepository) Delete(ctx context.Context, orgID uuid.UUID, permissionKey string) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, orgID, permissionKey)
}

func TestSetRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Set(context.Background(), uuid.New(), "events.manage", SetInput{MinRole: "emperor"})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestSetRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Set(context.Background(), uuid.New(), "   ", SetInput{MinRole: "volunteer"})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestSetRequiresMinRole(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Set(context.Background(), uuid.New(), "events.manage", SetInput{})

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
}

func TestSetDefaultsEnabledAndInjectsOrg(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	repo := &mockRepository{}
	repo.upsertFn = func(_ context.Context, override rbac.Override) error {
		require.Equal(t, orgID, override.OrgID)
		require.Equal(t, "events.manage", override.PermissionKey)
		require.Equal(t, rbac.RoleVolunteer, override.MinRole)
		require.True(t, override.Enabled)
		return nil
	}

	svc := New(repo)
	view, err := svc.Set(context.Background(), orgID, "events.manage", SetInput{MinRole: "volunteer"})
	require.NoError(t, err)
	require.Equal(t, "volunteer", view.MinRole)
	require.True(t, view.Enabled)
}

func TestSetHonorsExplicitDisable(t *testing.T) {
	t.Parallel()

	disabled := false
	repo := &mockRepository{}
	repo.upsertFn = func(_ context.Context, override rbac.Override) error {
		require.False(t, override.Enabled)
		return nil
	}

	svc := New(repo)
	view, err := svc.Set(context.Background(), uuid.New(), "events.delete", SetInput{MinRole: "admin", Enabled: &disabled})
	require.NoError(t, err)
	require.False(t, view.Enabled)
}

func TestListMapsToViews(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	repo := &mockRepository{}
	repo.listFn = func(_ context.Context, gotOrg uuid.UUID) ([]rbac.Override, error) {
		require.Equal(t, orgID, gotOrg)
		return []rbac.Override{
			{OrgID: orgID, PermissionKey: "events.manage", MinRole: rbac.RoleVolunteer, Enabled: true},
			{OrgID: orgID, PermissionKey: "members.manage", MinRole: rbac.RoleBoardMember, SpecificUsers: []string{"u1"}, Enabled: true},
		}, nil
	}

	svc := New(repo)
	views, err := svc.List(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "volunteer", views[0].MinRole)
	require.Equal(t, []string{"u1"}, views[1].SpecificUsers)
}

func TestRemovePropagatesRepositoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	repo := &mockRepository{}
	repo.deleteFn = func(context.Context, uuid.UUID, string) error { return boom }

	svc := New(repo)
	require.ErrorIs(t, svc.Remove(context.Background(), uuid.New(), "events.manage"), boom)
}
