package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

// ErrKeyNotFound is returned by KeyStore implementations when no key row
// matches the (key id, secret hash) pair.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore is the lookup surface the authenticator needs from persistence.
type KeyStore interface {
	Lookup(ctx context.Context, keyID, secretHash string) (APIKey, error)
	TouchLastUsed(ctx context.Context, keyID string) error
}

// UsageRecord is one append-only analytics row per API-key request.
type UsageRecord struct {
	KeyID      string
	OrgID      uuid.UUID
	Endpoint   string
	Method     string
	StatusCode int
	LatencyMs  int64
}

// UsageRecorder persists usage rows; failures are logged, never surfaced.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// Authenticator resolves exactly one of {API-key principal, bearer
// principal, anonymous} for every request.
type Authenticator struct {
	verify VerifyFunc
	keys   KeyStore
	usage  UsageRecorder
	runner *tasks.Runner
}

// NewAuthenticator wires the verifier and key store. usage may be nil when
// analytics are disabled.
func NewAuthenticator(verify VerifyFunc, keys KeyStore, usage UsageRecorder, runner *tasks.Runner) *Authenticator {
	if verify == nil {
		panic("auth: verify func is required")
	}
	if keys == nil {
		panic("auth: key store is required")
	}
	if runner == nil {
		panic("auth: task runner is required")
	}
	return &Authenticator{verify: verify, keys: keys, usage: usage, runner: runner}
}

// Middleware populates the request principal. An API-key header wins over
// a bearer token; verification failures are terminal for the request, and
// requests with neither credential continue as anonymous so public routes
// keep working.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if presented := r.Header.Get(HeaderAPIKey); presented != "" {
			a.serveWithAPIKey(w, r, next, presented)
			return
		}

		if token, ok := ExtractBearerToken(r); ok {
			claims, err := a.verify(r.Context(), token)
			if err != nil {
				respond.Error(w, r, apierror.Unauthorized("invalid or expired token").WithCause(err))
				return
			}
			principal := Principal{Kind: KindUser, UserID: claims.Subject, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Anonymous())))
	})
}

func (a *Authenticator) serveWithAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, presented string) {
	keyID, secretHash, err := ParsePresentedKey(presented)
	if err != nil {
		respond.Error(w, r, apierror.New(apierror.CodeAPIKeyInvalidFormat, "api key must be <keyId>.<secret>"))
		return
	}

	key, err := a.keys.Lookup(r.Context(), keyID, secretHash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			respond.Error(w, r, apierror.New(apierror.CodeAPIKeyInvalid, "unknown api key"))
			return
		}
		respond.Error(w, r, apierror.Database("api key lookup failed").WithCause(err))
		return
	}

	if !key.Active {
		respond.Error(w, r, apierror.New(apierror.CodeAPIKeyInvalid, "api key has been revoked"))
		return
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		respond.Error(w, r, apierror.New(apierror.CodeAPIKeyExpired, "api key has expired"))
		return
	}

	principal := Principal{Kind: KindAPIKey, Key: &key}
	ctx := WithPrincipal(r.Context(), principal)

	a.runner.Go("apikey.touch-last-used", func(ctx context.Context) error {
		return a.keys.TouchLastUsed(ctx, key.KeyID)
	})

	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	next.ServeHTTP(ww, r.WithContext(ctx))

	if a.usage != nil {
		rec := UsageRecord{
			KeyID:      key.KeyID,
			OrgID:      key.OrgID,
			Endpoint:   r.URL.Path,
			Method:     r.Method,
			StatusCode: ww.Status(),
			LatencyMs:  time.Since(start).Milliseconds(),
		}
		a.runner.Go("apikey.record-usage", func(ctx context.Context) error {
			return a.usage.RecordUsage(ctx, rec)
		})
	}
}

// RequireAuth rejects anonymous requests with UNAUTHORIZED.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.Kind == KindAnonymous {
			respond.Error(w, r, apierror.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIKey rejects everything but API-key principals, with the
// API_KEY_REQUIRED taxonomy entry.
func RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.Kind != KindAPIKey {
			respond.Error(w, r, apierror.New(apierror.CodeAPIKeyRequired, "an api key is required for this endpoint"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
