package orgctx

import (
	"context"
	"net/http"

	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/rbac"
	"github.com/classbridge/ptohub/platform/go/respond"
)

func roleDenial(required rbac.Role, current rbac.Role) *apierror.Error {
	return apierror.New(apierror.CodeInsufficientPerms, "this action requires a higher role").
		WithDetails(map[string]any{
			"required": string(required),
			"current":  string(current),
		})
}

// RequireMinRole passes when the member's role level is at least the
// required one; the boundary case (equal level) passes.
func RequireMinRole(required rbac.Role) func(http.Handler) http.Handler {
	return requireRole(func(role rbac.Role) bool {
		return role.AtLeast(required)
	}, required)
}

// RequireExactRole passes only for the named role.
func RequireExactRole(required rbac.Role) func(http.Handler) http.Handler {
	return requireRole(func(role rbac.Role) bool {
		return role == required
	}, required)
}

// RequireAnyRole passes when the member holds one of the listed roles.
func RequireAnyRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	var lowest rbac.Role
	for _, role := range roles {
		if lowest == "" || role.Level() < lowest.Level() {
			lowest = role
		}
	}
	return requireRole(func(role rbac.Role) bool {
		for _, allowed := range roles {
			if role == allowed {
				return true
			}
		}
		return false
	}, lowest)
}

func requireRole(allowed func(rbac.Role) bool, required rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, ok := FromContext(r.Context())
			if !ok {
				respond.Error(w, r, apierror.Unauthorized("authentication required"))
				return
			}
			if !allowed(m.Role) {
				respond.Error(w, r, roleDenial(required, m.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// permissionCheck evaluates keys with the given combinator for the
// current principal. API-key principals check their named permission set;
// user principals go through the override evaluator.
func permissionCheck(eval *rbac.Evaluator, mode string, keys ...string) func(http.Handler) http.Handler {
	if eval == nil {
		panic("orgctx: permission evaluator is required")
	}
	if len(keys) == 0 {
		panic("orgctx: at least one permission key is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || principal.Kind == auth.KindAnonymous {
				respond.Error(w, r, apierror.Unauthorized("authentication required"))
				return
			}

			m, ok := FromContext(r.Context())
			if !ok {
				respond.Error(w, r, apierror.Forbidden("organization context missing"))
				return
			}

			if principal.Kind == auth.KindAPIKey {
				if !keyAllows(principal.Key, mode, keys) {
					respond.Error(w, r, apierror.New(apierror.CodeInsufficientPerms, "api key does not grant this capability").
						WithDetails(map[string]any{"required": keys}))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			decision, err := evaluate(r.Context(), eval, m, mode, keys)
			if err != nil {
				respond.Error(w, r, apierror.Database("permission evaluation failed").WithCause(err))
				return
			}
			if !decision.Allowed {
				respond.Error(w, r, roleDenial(decision.Required, m.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func keyAllows(key *auth.APIKey, mode string, keys []string) bool {
	if key == nil {
		return false
	}
	if mode == "any" {
		for _, k := range keys {
			if key.HasPermission(k) {
				return true
			}
		}
		return false
	}
	for _, k := range keys {
		if !key.HasPermission(k) {
			return false
		}
	}
	return true
}

func evaluate(ctx context.Context, eval *rbac.Evaluator, m Membership, mode string, keys []string) (rbac.Decision, error) {
	if mode == "any" {
		return eval.CheckAny(ctx, m.OrgID, m.Profile.UserID, m.Role, keys...)
	}
	return eval.CheckAll(ctx, m.OrgID, m.Profile.UserID, m.Role, keys...)
}

// RequirePermission gates a route on a single named capability.
func RequirePermission(eval *rbac.Evaluator, key string) func(http.Handler) http.Handler {
	return permissionCheck(eval, "all", key)
}

// RequireAllPermissions requires every listed capability.
func RequireAllPermissions(eval *rbac.Evaluator, keys ...string) func(http.Handler) http.Handler {
	return permissionCheck(eval, "all", keys...)
}

// RequireAnyPermission requires at least one of the listed capabilities.
func RequireAnyPermission(eval *rbac.Evaluator, keys ...string) func(http.Handler) http.Handler {
	return permissionCheck(eval, "any", keys...)
}

// CanModify implements the ownership-aware check used inside handlers:
// the recorded creator may modify their own resource, anyone else needs
// the minimum role. Returns a typed denial for respond.Error.
func CanModify(ctx context.Context, creatorID string, minRole rbac.Role) error {
	m, ok := FromContext(ctx)
	if !ok {
		return apierror.Unauthorized("authentication required")
	}
	if creatorID != "" && m.Profile.UserID == creatorID {
		return nil
	}
	if !m.Role.AtLeast(minRole) {
		return roleDenial(minRole, m.Role)
	}
	return nil
}
