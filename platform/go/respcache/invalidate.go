package respcache

import "context"

// Invalidator purges cache entries by coarse pattern. Writes to the
// underlying entities do not invalidate automatically; staleness up to
// the TTL is accepted, and callers use these purges when they cannot
// wait for expiry.
type Invalidator struct {
	store Store
}

// NewInvalidator wraps a Store.
func NewInvalidator(store Store) Invalidator {
	return Invalidator{store: store}
}

// ByOrg drops every entry belonging to an organization.
func (i Invalidator) ByOrg(ctx context.Context, orgID string) (int, error) {
	return i.store.DeletePattern(ctx, keyPrefix+":*:"+orgID+":*")
}

// ByPrincipal drops every entry keyed by a user id or API-key id.
func (i Invalidator) ByPrincipal(ctx context.Context, principalID string) (int, error) {
	return i.store.DeletePattern(ctx, keyPrefix+":*:"+principalID+":*")
}

// ByEndpoint drops every entry for an endpoint glob, e.g. "/api/v1/events*".
func (i Invalidator) ByEndpoint(ctx context.Context, endpointPattern string) (int, error) {
	return i.store.DeletePattern(ctx, keyPrefix+":"+endpointPattern+":*")
}

// Clear drops everything.
func (i Invalidator) Clear(ctx context.Context) error {
	return i.store.Clear(ctx)
}
