package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoleHierarchyBoundaries(t *testing.T) {
	t.Parallel()

	require.True(t, RoleAdmin.AtLeast(RoleAdmin))
	require.True(t, RoleAdmin.AtLeast(RoleBoardMember))
	require.True(t, RoleCommitteeLead.AtLeast(RoleCommitteeLead))
	require.False(t, RoleCommitteeLead.AtLeast(RoleBoardMember))
	require.False(t, RoleVolunteer.AtLeast(RoleCommitteeLead))

	// parent_member and teacher share the same level
	require.True(t, RoleParentMember.AtLeast(RoleTeacher))
	require.True(t, RoleTeacher.AtLeast(RoleParentMember))

	// unknown roles rank below everything
	require.False(t, Role("ghost").AtLeast(RoleTeacher))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"admin", "board_member", "committee_lead", "volunteer", "parent_member", "teacher"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		require.True(t, role.Valid())
	}

	_, err := ParseRole("superuser")
	require.Error(t, err)
}

type mockOverrideStore struct {
	overrides map[string]Override
	err       error
}

func (m *mockOverrideStore) GetOverride(ctx context.Context, orgID uuid.UUID, key string) (Override, bool, error) {
	if m.err != nil {
		return Override{}, false, m.err
	}
	o, ok := m.overrides[key]
	return o, ok, nil
}

func TestCheckFallsBackToTemplateWhenNoOverride(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(&mockOverrideStore{}, DefaultTemplate())
	orgID := uuid.New()

	decision, err := eval.Check(context.Background(), orgID, "u1", RoleCommitteeLead, "events.manage")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, RoleCommitteeLead, decision.Required)

	decision, err = eval.Check(context.Background(), orgID, "u1", RoleVolunteer, "events.manage")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckUnknownKeyUsesTemplateDefaultMinRole(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(&mockOverrideStore{}, DefaultTemplate())

	decision, err := eval.Check(context.Background(), uuid.New(), "u1", RoleBoardMember, "made.up.key")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, RoleAdmin, decision.Required)
}

func TestCheckOverrideTakesPrecedence(t *testing.T) {
	t.Parallel()

	store := &mockOverrideStore{overrides: map[string]Override{
		"events.manage": {PermissionKey: "events.manage", MinRole: RoleVolunteer, Enabled: true},
	}}
	eval := NewEvaluator(store, DefaultTemplate())

	// Template says committee_lead; override relaxes to volunteer.
	decision, err := eval.Check(context.Background(), uuid.New(), "u1", RoleVolunteer, "events.manage")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, RoleVolunteer, decision.Required)
}

func TestCheckDisabledOverrideDeniesEveryone(t *testing.T) {
	t.Parallel()

	store := &mockOverrideStore{overrides: map[string]Override{
		"communications.send": {PermissionKey: "communications.send", MinRole: RoleVolunteer, Enabled: false},
	}}
	eval := NewEvaluator(store, DefaultTemplate())

	decision, err := eval.Check(context.Background(), uuid.New(), "u1", RoleAdmin, "communications.send")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckSpecificUsersAllowList(t *testing.T) {
	t.Parallel()

	store := &mockOverrideStore{overrides: map[string]Override{
		"budgets.manage": {
			PermissionKey: "budgets.manage",
			MinRole:       RoleAdmin,
			SpecificUsers: []string{"treasurer-1"},
			Enabled:       true,
		},
	}}
	eval := NewEvaluator(store, DefaultTemplate())

	decision, err := eval.Check(context.Background(), uuid.New(), "treasurer-1", RoleVolunteer, "budgets.manage")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = eval.Check(context.Background(), uuid.New(), "someone-else", RoleBoardMember, "budgets.manage")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckStoreErrorNeverAllows(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(&mockOverrideStore{err: errors.New("connection reset")}, DefaultTemplate())

	_, err := eval.Check(context.Background(), uuid.New(), "u1", RoleAdmin, "events.view")
	require.Error(t, err)
}

func TestCheckAllAndAny(t *testing.T) {
	t.Parallel()

	eval := NewEvaluator(&mockOverrideStore{}, DefaultTemplate())
	orgID := uuid.New()

	decision, err := eval.CheckAll(context.Background(), orgID, "u1", RoleBoardMember, "events.view", "events.manage", "events.delete")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = eval.CheckAll(context.Background(), orgID, "u1", RoleCommitteeLead, "events.manage", "events.delete")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, RoleBoardMember, decision.Required)

	decision, err = eval.CheckAny(context.Background(), orgID, "u1", RoleCommitteeLead, "events.delete", "events.manage")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = eval.CheckAny(context.Background(), orgID, "u1", RoleVolunteer, "events.delete", "events.manage")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}
