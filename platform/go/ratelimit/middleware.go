package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/classbridge/ptohub/platform/go/apierror"
	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/obs"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/respond"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

// Violation is the append-only record emitted when a request is rejected.
type Violation struct {
	Identity string
	Tier     Tier
	Endpoint string
	Method   string
	At       time.Time
}

// ViolationRecorder persists violations for monitoring; failures are
// logged, never surfaced.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, v Violation) error
}

// EndpointOverride pins a stricter quota to a path prefix. The longest
// matching prefix wins over the tier quota.
type EndpointOverride struct {
	PathPrefix string
	Limit      Limit
}

// Config assembles a Limiter.
type Config struct {
	// Store is the preferred shared counter backend; nil disables it and
	// Fallback is used directly.
	Store CounterStore
	// Fallback handles requests when Store errors. Required.
	Fallback CounterStore
	// Overrides are endpoint-specific quotas for sensitive paths.
	Overrides []EndpointOverride
	// Violations is optional.
	Violations ViolationRecorder

	Logger *zap.Logger
	Runner *tasks.Runner
}

// Limiter is the rate-limiting middleware.
type Limiter struct {
	cfg Config
}

// New validates the configuration and builds a Limiter.
func New(cfg Config) *Limiter {
	if cfg.Fallback == nil {
		panic("ratelimit: fallback store is required")
	}
	if cfg.Logger == nil {
		panic("ratelimit: logger is required")
	}
	if cfg.Runner == nil {
		panic("ratelimit: task runner is required")
	}
	return &Limiter{cfg: cfg}
}

// Middleware enforces the quota for the request identity. Identity
// preference: API-key id, then user id, then client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFor(r)
		tier := tierFor(r)

		limit, scope := l.limitFor(r.URL.Path, tier)

		count, remaining, err := l.incr(r.Context(), scope+":"+identity, limit.Window)
		if err != nil {
			// Both backends down: fail open rather than rejecting traffic.
			l.cfg.Logger.Error("rate limit backends unavailable", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(limit.Requests) {
			l.reject(w, r, identity, tier, limit, remaining)
			return
		}

		// Spike control: the burst sub-window applies alongside the tier
		// quota, but never to endpoint overrides (already stricter).
		if scope == "tier" {
			burst := BurstLimitFor(tier)
			burstCount, burstRemaining, err := l.incr(r.Context(), "burst:"+identity, burst.Window)
			if err == nil && burstCount > int64(burst.Requests) {
				l.reject(w, r, identity, tier, burst, burstRemaining)
				return
			}
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		left := int64(limit.Requests) - count
		if left < 0 {
			left = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(remaining).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// limitFor resolves the applicable quota: the longest matching endpoint
// override wins, otherwise the tier quota applies.
func (l *Limiter) limitFor(path string, tier Tier) (Limit, string) {
	var best *EndpointOverride
	for i := range l.cfg.Overrides {
		o := &l.cfg.Overrides[i]
		if strings.HasPrefix(path, o.PathPrefix) {
			if best == nil || len(o.PathPrefix) > len(best.PathPrefix) {
				best = o
			}
		}
	}
	if best != nil {
		return best.Limit, "ep:" + best.PathPrefix
	}
	return LimitFor(tier), "tier"
}

func (l *Limiter) incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if l.cfg.Store != nil {
		count, remaining, err := l.cfg.Store.Incr(ctx, key, window)
		if err == nil {
			return count, remaining, nil
		}
		l.cfg.Logger.Warn("shared rate-limit store unavailable, using local counters", zap.Error(err))
	}
	return l.cfg.Fallback.Incr(ctx, key, window)
}

func (l *Limiter) reject(w http.ResponseWriter, r *http.Request, identity string, tier Tier, limit Limit, remaining time.Duration) {
	retryAfter := int(remaining.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(remaining).Unix(), 10))

	obs.RecordRateLimitViolation(string(tier))

	violation := Violation{
		Identity: identity,
		Tier:     tier,
		Endpoint: r.URL.Path,
		Method:   r.Method,
		At:       time.Now().UTC(),
	}
	l.cfg.Logger.Warn("rate limit exceeded",
		zap.String("identity", violation.Identity),
		zap.String("tier", string(tier)),
		zap.String("endpoint", violation.Endpoint),
	)
	if l.cfg.Violations != nil {
		l.cfg.Runner.Go("ratelimit.record-violation", func(ctx context.Context) error {
			return l.cfg.Violations.RecordViolation(ctx, violation)
		})
	}

	respond.Error(w, r, apierror.New(apierror.CodeRateLimitExceeded, "rate limit exceeded, slow down").
		WithDetails(map[string]any{
			"tier":           string(tier),
			"limit":          limit.Requests,
			"window_minutes": limit.WindowMinutes(),
			"retry_after":    retryAfter,
		}))
}

// identityFor prefers the API-key id, then the user id, then the client
// IP for unauthenticated traffic.
func identityFor(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		if id := p.Identity(); id != "" {
			return id
		}
	}
	return "ip:" + clientIP(r)
}

// tierFor resolves the quota class: API-key configuration first, then the
// organization's subscription tier, free for anonymous traffic.
func tierFor(r *http.Request) Tier {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.Kind == auth.KindAnonymous {
		return TierFree
	}
	if p.Kind == auth.KindAPIKey && p.Key != nil {
		return ParseTier(p.Key.Tier)
	}
	if m, ok := orgctx.FromContext(r.Context()); ok && m.Tier != "" {
		return ParseTier(m.Tier)
	}
	return TierStandard
}

// clientIP unwraps proxy headers, falling back to the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
