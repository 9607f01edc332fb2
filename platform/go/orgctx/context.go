// Package orgctx resolves the authenticated principal's organization
// membership and makes it available to every downstream stage: rate-tier
// resolution, cache keying, permission checks, and org-id injection.
package orgctx

import (
	"context"

	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/rbac"
)

type ctxKey struct{}

// Profile is the persisted profile row backing a membership.
type Profile struct {
	UserID    string
	OrgID     *uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      string
	// OrgTier is the owning organization's subscription tier, used for
	// rate-limit quota resolution.
	OrgTier string
}

// Membership is the request-scoped organization context. For API-key
// principals Role is empty and authorization flows through the key's
// permission set instead.
type Membership struct {
	OrgID   uuid.UUID
	Role    rbac.Role
	Profile Profile
	// Tier is the subscription tier inherited from the organization (or
	// the API key's configured tier).
	Tier string
}

// WithMembership stores the membership on the context.
func WithMembership(ctx context.Context, m Membership) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext extracts the membership, reporting false when the loader
// has not run.
func FromContext(ctx context.Context) (Membership, bool) {
	m, ok := ctx.Value(ctxKey{}).(Membership)
	return m, ok
}
