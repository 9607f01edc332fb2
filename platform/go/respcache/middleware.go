package respcache

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/obs"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

// Config assembles a Cache.
type Config struct {
	Store  Store
	TTL    TTLConfig
	Logger *zap.Logger
	Runner *tasks.Runner
}

// Cache is the cache-aside middleware for GET responses.
type Cache struct {
	cfg Config
}

// New validates the configuration and builds a Cache.
func New(cfg Config) *Cache {
	if cfg.Store == nil {
		panic("respcache: store is required")
	}
	if cfg.Logger == nil {
		panic("respcache: logger is required")
	}
	if cfg.Runner == nil {
		panic("respcache: task runner is required")
	}
	if cfg.TTL.Default == 0 {
		cfg.TTL = DefaultTTLConfig()
	}
	return &Cache{cfg: cfg}
}

// Middleware serves GET requests from the cache when possible. Anything
// but an authenticated GET passes straight through.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ident, ok := cacheIdentityFor(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := Key(r.URL.Path, ident.orgID, ident.principalID, ident.roleOrTier, r.URL.Query())

		payload, remaining, hit, err := c.cfg.Store.Get(r.Context(), key)
		if err != nil {
			c.cfg.Logger.Warn("response cache unavailable", zap.Error(err))
		}
		if hit {
			if c.replay(w, r, payload, remaining) {
				obs.RecordCacheHit()
				return
			}
		}
		obs.RecordCacheMiss()

		ttl := c.cfg.TTL.For(r.URL.Path)

		rec := newCaptureWriter(w)
		next.ServeHTTP(rec, r)

		body, storable := c.stampMiss(rec, int(ttl.Seconds()))
		rec.flush(body)

		if storable {
			c.cfg.Runner.Go("respcache.store", func(ctx context.Context) error {
				return c.cfg.Store.Set(ctx, key, body, ttl)
			})
		}
	})
}

// replay writes the stored envelope back with the hit flag flipped and
// request-scoped metadata refreshed. Returns false when the stored bytes
// no longer parse, in which case the request falls through as a miss.
func (c *Cache) replay(w http.ResponseWriter, r *http.Request, payload []byte, remaining time.Duration) bool {
	var env respond.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.cfg.Logger.Warn("discarding unparseable cache entry", zap.Error(err))
		return false
	}

	hit := true
	ttl := int(remaining.Seconds())
	env.Meta.CacheHit = &hit
	env.Meta.CacheTTL = &ttl
	env.Meta.Timestamp = time.Now().UTC()
	env.Meta.RequestID = chimiddleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
	return true
}

// stampMiss adds cache_hit:false to a successful captured response and
// reports whether the body is storable. Non-2xx and unparseable bodies
// pass through untouched.
func (c *Cache) stampMiss(rec *captureWriter, ttlSeconds int) ([]byte, bool) {
	body := rec.body.Bytes()
	if rec.status < 200 || rec.status >= 300 {
		return body, false
	}

	var env respond.Envelope
	if err := json.Unmarshal(body, &env); err != nil || !env.Success {
		return body, false
	}

	hit := false
	env.Meta.CacheHit = &hit
	env.Meta.CacheTTL = &ttlSeconds

	stamped, err := json.Marshal(env)
	if err != nil {
		return body, false
	}
	return stamped, true
}

type cacheIdentity struct {
	orgID       string
	principalID string
	roleOrTier  string
}

// cacheIdentity derives the tenant scope for the cache key. Requests with
// no resolved membership are never cached.
func cacheIdentityFor(r *http.Request) (cacheIdentity, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.Kind == auth.KindAnonymous {
		return cacheIdentity{}, false
	}
	membership, ok := orgctx.FromContext(r.Context())
	if !ok {
		return cacheIdentity{}, false
	}

	ident := cacheIdentity{orgID: membership.OrgID.String()}
	switch principal.Kind {
	case auth.KindAPIKey:
		ident.principalID = principal.Key.KeyID
		ident.roleOrTier = principal.Key.Tier
	default:
		ident.principalID = principal.UserID
		ident.roleOrTier = string(membership.Role)
	}
	return ident, true
}

// captureWriter buffers the handler's response so the cache layer can
// inspect and rewrite it before anything reaches the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w, status: http.StatusOK}
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
}

func (c *captureWriter) Write(p []byte) (int, error) {
	return c.body.Write(p)
}

func (c *captureWriter) flush(body []byte) {
	c.ResponseWriter.WriteHeader(c.status)
	_, _ = c.ResponseWriter.Write(body)
}
