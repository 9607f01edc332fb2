package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge/ptohub/platform/go/ratelimit"
)

const RateLimitViolationsTable = "rate_limit_violations"

// ViolationStore appends rate-limit violations for monitoring. It
// implements ratelimit.ViolationRecorder.
type ViolationStore struct {
	pool *pgxpool.Pool
}

// NewViolationStore returns a store instance.
func NewViolationStore(pool *pgxpool.Pool) (*ViolationStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ViolationStore{pool: pool}, nil
}

// RecordViolation appends one violation row. Rows are never updated.
func (s *ViolationStore) RecordViolation(ctx context.Context, v ratelimit.Violation) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (identity, tier, endpoint, method, occurred_at)
        VALUES ($1, $2, $3, $4, $5)
    `, RateLimitViolationsTable),
		v.Identity, string(v.Tier), v.Endpoint, v.Method, v.At,
	)
	if err != nil {
		return fmt.Errorf("record rate limit violation: %w", err)
	}
	return nil
}
