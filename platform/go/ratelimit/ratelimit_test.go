package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classbridge/ptohub/platform/go/auth"
	"github.com/classbridge/ptohub/platform/go/orgctx"
	"github.com/classbridge/ptohub/platform/go/tasks"
)

func TestMemoryCounterWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(100)
	counter.now = func() time.Time { return now }

	count, remaining, err := counter.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, time.Minute, remaining)

	count, _, err = counter.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// Past the window the counter resets.
	now = now.Add(61 * time.Second)
	count, remaining, err = counter.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, time.Minute, remaining)
}

func TestMemoryCounterEviction(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter(10)
	counter.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		_, _, err := counter.Incr(context.Background(), fmt.Sprintf("k%d", i), time.Duration(i+1)*time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 10, counter.Len())

	// Inserting into a full store drops the oldest windows first.
	_, _, err := counter.Incr(context.Background(), "fresh", time.Hour)
	require.NoError(t, err)
	require.Equal(t, 10, counter.Len())

	count, _, err := counter.Incr(context.Background(), "k0", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "oldest window was evicted")
}

func TestParseTierDefaultsToFree(t *testing.T) {
	require.Equal(t, TierFree, ParseTier(""))
	require.Equal(t, TierFree, ParseTier("platinum"))
	require.Equal(t, TierEnterprise, ParseTier("enterprise"))
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("connection refused")
}

type recordedViolations struct {
	mu         sync.Mutex
	violations []Violation
}

func (r *recordedViolations) RecordViolation(_ context.Context, v Violation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
	return nil
}

func (r *recordedViolations) all() []Violation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Violation(nil), r.violations...)
}

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *tasks.Runner) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	runner := tasks.NewRunner(logger, time.Second)
	cfg.Logger = logger
	cfg.Runner = runner
	if cfg.Fallback == nil {
		cfg.Fallback = NewMemoryCounter(1000)
	}
	return New(cfg), runner
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userRequest(userID, tier string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	ctx := auth.WithPrincipal(r.Context(), auth.Principal{Kind: auth.KindUser, UserID: userID})
	ctx = orgctx.WithMembership(ctx, orgctx.Membership{Tier: tier})
	return r.WithContext(ctx)
}

func TestLimiterAllowsUpToQuotaThenRejects(t *testing.T) {
	limiter, runner := newTestLimiter(t, Config{})
	handler := limiter.Middleware(okHandler())

	burst := BurstLimitFor(TierFree)
	for i := 0; i < burst.Requests; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, userRequest("u1", "free"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d within burst quota", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u1", "free"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Success bool `json:"success"`
		Errors  []struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", body.Errors[0].Code)
	require.Equal(t, "free", body.Errors[0].Details["tier"])
	require.NotZero(t, body.Errors[0].Details["retry_after"])
	runner.Wait()
}

func TestLimiterIdentitiesAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	handler := limiter.Middleware(okHandler())

	burst := BurstLimitFor(TierFree)
	for i := 0; i < burst.Requests; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, userRequest("u1", "free"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u2", "free"))
	require.Equal(t, http.StatusOK, rec.Code, "other identities keep their own counters")
}

func TestLimiterEndpointOverrideWins(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		Overrides: []EndpointOverride{
			{PathPrefix: "/api/v1", Limit: Limit{Requests: 50, Window: time.Hour}},
			{PathPrefix: "/api/v1/apikeys", Limit: Limit{Requests: 2, Window: time.Hour}},
		},
	})
	handler := limiter.Middleware(okHandler())

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/apikeys", nil)
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{Kind: auth.KindUser, UserID: "u1"})
		ctx = orgctx.WithMembership(ctx, orgctx.Membership{Tier: "enterprise"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r.WithContext(ctx))
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)
	require.Equal(t, http.StatusOK, send().Code)
	// The longest-prefix override applies even on an enterprise tier.
	require.Equal(t, http.StatusTooManyRequests, send().Code)
}

func TestLimiterFallsBackWhenStoreErrors(t *testing.T) {
	fallback := NewMemoryCounter(100)
	limiter, _ := newTestLimiter(t, Config{Store: failingCounter{}, Fallback: fallback})
	handler := limiter.Middleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, userRequest("u1", "standard"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Positive(t, fallback.Len(), "counters land in the fallback store")
}

func TestLimiterRecordsViolations(t *testing.T) {
	recorder := &recordedViolations{}
	limiter, runner := newTestLimiter(t, Config{Violations: recorder})
	handler := limiter.Middleware(okHandler())

	burst := BurstLimitFor(TierFree)
	for i := 0; i <= burst.Requests; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, userRequest("u1", "free"))
	}
	runner.Wait()

	got := recorder.all()
	require.Len(t, got, 1)
	require.Equal(t, "user:u1", got[0].Identity)
	require.Equal(t, TierFree, got[0].Tier)
	require.Equal(t, "/api/v1/events", got[0].Endpoint)
}

func TestLimiterAnonymousKeyedByClientIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	handler := limiter.Middleware(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
		r.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec
	}

	burst := BurstLimitFor(TierFree)
	for i := 0; i < burst.Requests; i++ {
		require.Equal(t, http.StatusOK, send("203.0.113.7").Code)
	}
	require.Equal(t, http.StatusTooManyRequests, send("203.0.113.7").Code)
	require.Equal(t, http.StatusOK, send("203.0.113.8").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		expect string
	}{
		{
			name:   "forwarded chain takes first hop",
			setup:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1") },
			expect: "203.0.113.7",
		},
		{
			name:   "real ip header",
			setup:  func(r *http.Request) { r.Header.Set("X-Real-IP", "203.0.113.9") },
			expect: "203.0.113.9",
		},
		{
			name:   "remote addr fallback",
			setup:  func(r *http.Request) {},
			expect: "192.0.2.1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(r)
			require.Equal(t, tc.expect, clientIP(r))
		})
	}
}
