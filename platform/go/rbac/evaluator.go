package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Override is a per-organization customization of the minimum role
// required for a named capability.
type Override struct {
	OrgID         uuid.UUID
	PermissionKey string
	MinRole       Role
	// SpecificUsers, when non-empty, grants the capability to the listed
	// user ids regardless of role.
	SpecificUsers []string
	Enabled       bool
}

// OverrideStore looks up per-organization overrides. found=false means no
// row exists and the template default applies.
type OverrideStore interface {
	GetOverride(ctx context.Context, orgID uuid.UUID, permissionKey string) (Override, bool, error)
}

// Template is the global default minimum role per permission key. Keys
// absent from the table fall back to DefaultMinRole, so the lookup is
// total.
type Template struct {
	Defaults       map[string]Role
	DefaultMinRole Role
}

// DefaultTemplate returns the shipped permission template.
func DefaultTemplate() Template {
	return Template{
		Defaults: map[string]Role{
			"events.view":          RoleVolunteer,
			"events.manage":        RoleCommitteeLead,
			"events.delete":        RoleBoardMember,
			"members.view":         RoleVolunteer,
			"members.manage":       RoleAdmin,
			"budgets.view":         RoleCommitteeLead,
			"budgets.manage":       RoleBoardMember,
			"fundraisers.view":     RoleVolunteer,
			"fundraisers.manage":   RoleCommitteeLead,
			"documents.view":       RoleVolunteer,
			"documents.manage":     RoleCommitteeLead,
			"communications.send":  RoleBoardMember,
			"apikeys.manage":       RoleAdmin,
			"organization.setting": RoleAdmin,
		},
		DefaultMinRole: RoleAdmin,
	}
}

// MinRole resolves the template default for a permission key.
func (t Template) MinRole(key string) Role {
	if role, ok := t.Defaults[key]; ok {
		return role
	}
	return t.DefaultMinRole
}

// Decision is the outcome of a permission evaluation, carrying the
// required role for error reporting.
type Decision struct {
	Allowed  bool
	Required Role
}

// Evaluator resolves named capabilities against the override table with
// the template as fallback. Overrides are evaluated first and never
// merged with template values.
type Evaluator struct {
	store    OverrideStore
	template Template
}

// NewEvaluator wires the override store and template.
func NewEvaluator(store OverrideStore, template Template) *Evaluator {
	if store == nil {
		panic("rbac: override store is required")
	}
	return &Evaluator{store: store, template: template}
}

// Check evaluates one permission key for the given member. A store error
// is returned as-is and must never be treated as an allow.
func (e *Evaluator) Check(ctx context.Context, orgID uuid.UUID, userID string, role Role, key string) (Decision, error) {
	override, found, err := e.store.GetOverride(ctx, orgID, key)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate permission %q: %w", key, err)
	}

	if !found {
		required := e.template.MinRole(key)
		return Decision{Allowed: role.AtLeast(required), Required: required}, nil
	}

	if !override.Enabled {
		return Decision{Allowed: false, Required: override.MinRole}, nil
	}

	for _, allowed := range override.SpecificUsers {
		if allowed == userID {
			return Decision{Allowed: true, Required: override.MinRole}, nil
		}
	}

	return Decision{Allowed: role.AtLeast(override.MinRole), Required: override.MinRole}, nil
}

// CheckAll requires every key to pass; the first denial or error wins.
func (e *Evaluator) CheckAll(ctx context.Context, orgID uuid.UUID, userID string, role Role, keys ...string) (Decision, error) {
	for _, key := range keys {
		decision, err := e.Check(ctx, orgID, userID, role, key)
		if err != nil {
			return Decision{}, err
		}
		if !decision.Allowed {
			return decision, nil
		}
	}
	return Decision{Allowed: true}, nil
}

// CheckAny passes when at least one key passes. Errors still short
// circuit: a failed lookup is never an implicit deny-then-continue.
func (e *Evaluator) CheckAny(ctx context.Context, orgID uuid.UUID, userID string, role Role, keys ...string) (Decision, error) {
	var last Decision
	for _, key := range keys {
		decision, err := e.Check(ctx, orgID, userID, role, key)
		if err != nil {
			return Decision{}, err
		}
		if decision.Allowed {
			return decision, nil
		}
		last = decision
	}
	return last, nil
}
