package orgctx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/rbac"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, userID string) (Profile, error)
}

func (m *mockResolver) ResolveProfile(ctx context.Context, userID string) (Profile, error) {
	return m.resolveFn(ctx, userID)
}

func userRequest(target, userID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{Kind: auth.KindUser, UserID: userID}))
}

func envelopeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Errors)
	return body.Errors[0].Code
}

func envelopeErrorDetails(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Errors []struct {
			Details map[string]any `json:"details"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Errors)
	return body.Errors[0].Details
}

func TestLoaderPopulatesMembershipForUser(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	resolver := &mockResolver{resolveFn: func(ctx context.Context, userID string) (Profile, error) {
		require.Equal(t, "user-1", userID)
		return Profile{UserID: userID, OrgID: &orgID, Role: "committee_lead", FirstName: "Dana"}, nil
	}}

	var got Membership
	handler := Loader(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, userRequest("/api/v1/events", "user-1"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, orgID, got.OrgID)
	require.Equal(t, rbac.RoleCommitteeLead, got.Role)
	require.Equal(t, "Dana", got.Profile.FirstName)
}

func TestLoaderStatusMapping(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	tests := []struct {
		name       string
		resolveFn  func(ctx context.Context, userID string) (Profile, error)
		wantStatus int
		wantCode   string
	}{
		{
			name: "no profile row",
			resolveFn: func(ctx context.Context, userID string) (Profile, error) {
				return Profile{}, ErrProfileNotFound
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name: "profile without org",
			resolveFn: func(ctx context.Context, userID string) (Profile, error) {
				return Profile{UserID: userID, Role: "volunteer"}, nil
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name: "query failure",
			resolveFn: func(ctx context.Context, userID string) (Profile, error) {
				return Profile{}, errors.New("connection refused")
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "DATABASE_ERROR",
		},
		{
			name: "corrupt role",
			resolveFn: func(ctx context.Context, userID string) (Profile, error) {
				return Profile{UserID: userID, OrgID: &orgID, Role: "emperor"}, nil
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "DATABASE_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := Loader(&mockResolver{resolveFn: tt.resolveFn})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, userRequest("/api/v1/events", "user-1"))

			require.Equal(t, tt.wantStatus, rr.Code)
			require.Equal(t, tt.wantCode, envelopeErrorCode(t, rr))
		})
	}
}

func TestLoaderUsesKeyOrgForAPIKeyPrincipals(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	resolver := &mockResolver{resolveFn: func(ctx context.Context, userID string) (Profile, error) {
		t.Fatal("api key principals must not hit the profile resolver")
		return Profile{}, nil
	}}

	var got Membership
	handler := Loader(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	r = r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{
		Kind: auth.KindAPIKey,
		Key:  &auth.APIKey{KeyID: "abcd1234", OrgID: orgID, Active: true},
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, orgID, got.OrgID)
	require.Empty(t, got.Role)
}

func membershipRequest(target string, role rbac.Role, userID string) *http.Request {
	r := userRequest(target, userID)
	orgID := uuid.New()
	return r.WithContext(WithMembership(r.Context(), Membership{
		OrgID:   orgID,
		Role:    role,
		Profile: Profile{UserID: userID, OrgID: &orgID, Role: string(role)},
	}))
}

func TestRequireMinRoleBoundary(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// L == R must pass
	rr := httptest.NewRecorder()
	RequireMinRole(rbac.RoleBoardMember)(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleBoardMember, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)

	// L == R-1 must fail with required vs current in the body
	rr = httptest.NewRecorder()
	RequireMinRole(rbac.RoleBoardMember)(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleCommitteeLead, "u1"))
	require.Equal(t, http.StatusForbidden, rr.Code)

	details := envelopeErrorDetails(t, rr)
	require.Equal(t, "board_member", details["required"])
	require.Equal(t, "committee_lead", details["current"])
}

func TestRequireExactAndAnyRole(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	RequireExactRole(rbac.RoleTeacher)(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleAdmin, "u1"))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	RequireAnyRole(rbac.RoleTeacher, rbac.RoleParentMember)(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleParentMember, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)
}

type staticOverrides struct {
	overrides map[string]rbac.Override
	err       error
}

func (s *staticOverrides) GetOverride(ctx context.Context, orgID uuid.UUID, key string) (rbac.Override, bool, error) {
	if s.err != nil {
		return rbac.Override{}, false, s.err
	}
	o, ok := s.overrides[key]
	return o, ok, nil
}

func TestRequirePermissionUserPath(t *testing.T) {
	t.Parallel()

	eval := rbac.NewEvaluator(&staticOverrides{}, rbac.DefaultTemplate())
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	RequirePermission(eval, "events.manage")(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleCommitteeLead, "u1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	RequirePermission(eval, "events.manage")(okHandler).
		ServeHTTP(rr, membershipRequest("/x", rbac.RoleVolunteer, "u1"))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "INSUFFICIENT_PERMISSIONS", envelopeErrorCode(t, rr))
}

func TestRequirePermissionEvaluatorErrorIsServerError(t *testing.T) {
	t.Parallel()

	eval := rbac.NewEvaluator(&staticOverrides{err: errors.New("boom")}, rbac.DefaultTemplate())

	rr := httptest.NewRecorder()
	RequirePermission(eval, "events.view")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on evaluator failure")
	})).ServeHTTP(rr, membershipRequest("/x", rbac.RoleAdmin, "u1"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequirePermissionAPIKeyPath(t *testing.T) {
	t.Parallel()

	eval := rbac.NewEvaluator(&staticOverrides{}, rbac.DefaultTemplate())
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	newKeyRequest := func(perms []string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/x", nil)
		orgID := uuid.New()
		r = r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{
			Kind: auth.KindAPIKey,
			Key:  &auth.APIKey{KeyID: "abcd1234", OrgID: orgID, Permissions: perms, Active: true},
		}))
		return r.WithContext(WithMembership(r.Context(), Membership{OrgID: orgID}))
	}

	rr := httptest.NewRecorder()
	RequirePermission(eval, "events.view")(okHandler).ServeHTTP(rr, newKeyRequest([]string{"events.view"}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	RequirePermission(eval, "events.manage")(okHandler).ServeHTTP(rr, newKeyRequest([]string{"events.view"}))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	RequireAnyPermission(eval, "events.manage", "events.view")(okHandler).ServeHTTP(rr, newKeyRequest([]string{"events.view"}))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCanModify(t *testing.T) {
	t.Parallel()

	r := membershipRequest("/x", rbac.RoleVolunteer, "creator-1")

	// creator edits own resource
	require.NoError(t, CanModify(r.Context(), "creator-1", rbac.RoleBoardMember))

	// non-creator below the minimum role is denied
	err := CanModify(r.Context(), "someone-else", rbac.RoleBoardMember)
	require.Error(t, err)

	// non-creator with the minimum role passes
	r = membershipRequest("/x", rbac.RoleBoardMember, "moderator-1")
	require.NoError(t, CanModify(r.Context(), "someone-else", rbac.RoleBoardMember))
}
