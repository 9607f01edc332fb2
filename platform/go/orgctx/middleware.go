package orgctx

import (
	"context"
	"errors"
	"net/http"

	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respond"
)

// ErrProfileNotFound is returned by resolvers when no profile row exists
// for the user.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileResolver fetches the profile backing a user principal.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, userID string) (Profile, error)
}

// Loader populates the request membership from the authenticated
// principal. Every principal must resolve to exactly one organization or
// the request is rejected; anonymous requests pass through untouched so
// public routes keep working.
func Loader(resolver ProfileResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("orgctx: profile resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal.Kind == auth.KindAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			var membership Membership
			switch principal.Kind {
			case auth.KindAPIKey:
				membership = Membership{OrgID: principal.Key.OrgID, Tier: principal.Key.Tier}
			case auth.KindUser:
				profile, err := resolver.ResolveProfile(r.Context(), principal.UserID)
				if err != nil {
					if errors.Is(err, ErrProfileNotFound) {
						respond.Error(w, r, apierror.NotFound("no profile exists for this account"))
						return
					}
					respond.Error(w, r, apierror.Database("profile lookup failed").WithCause(err))
					return
				}

				if profile.OrgID == nil {
					respond.Error(w, r, apierror.Forbidden("account is not attached to an organization"))
					return
				}

				role, err := rbac.ParseRole(profile.Role)
				if err != nil {
					respond.Error(w, r, apierror.Database("profile carries an invalid role").WithCause(err))
					return
				}

				membership = Membership{OrgID: *profile.OrgID, Role: role, Profile: profile, Tier: profile.OrgTier}
			}

			next.ServeHTTP(w, r.WithContext(WithMembership(r.Context(), membership)))
		})
	}
}
