// Package auth resolves the request principal from either a bearer token
// (verified against the identity provider's signing secret) or a static
// API key (verified against the key store).
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Kind tags the kind of actor behind a request.
type Kind string

const (
	KindUser      Kind = "user"
	KindAPIKey    Kind = "api_key"
	KindAnonymous Kind = "anonymous"
)

// Principal is the authenticated actor for a request. Exactly one of the
// optional blocks is populated depending on Kind.
type Principal struct {
	Kind Kind

	// User block, set when Kind is KindUser.
	UserID string
	Email  string

	// Key block, set when Kind is KindAPIKey.
	Key *APIKey
}

// Anonymous returns the principal used for unauthenticated requests.
func Anonymous() Principal {
	return Principal{Kind: KindAnonymous}
}

// Identity returns the stable identifier preferred for rate-limit keying:
// API-key id first, then user id; empty for anonymous principals.
func (p Principal) Identity() string {
	switch p.Kind {
	case KindAPIKey:
		if p.Key != nil {
			return "key:" + p.Key.KeyID
		}
	case KindUser:
		return "user:" + p.UserID
	}
	return ""
}

// APIKey is the metadata attached to an API-key principal. The secret is
// never held in memory beyond the digest comparison at lookup time.
type APIKey struct {
	ID          uuid.UUID
	KeyID       string
	OrgID       uuid.UUID
	Name        string
	Permissions []string
	Tier        string
	Active      bool
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

// HasPermission reports whether the key's named permission set grants key.
// A literal "*" entry grants everything.
func (k *APIKey) HasPermission(key string) bool {
	for _, p := range k.Permissions {
		if p == key || p == "*" {
			return true
		}
	}
	return false
}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext extracts the principal, reporting false when the
// authentication middleware has not run.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
