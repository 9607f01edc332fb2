package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classbridge/ptohub/platform/go/auth"
)

const (
	APIKeysTable     = "api_keys"
	APIKeyUsageTable = "api_key_usage"
)

// APIKeyStore exposes persistence helpers for API keys and their usage
// log. It implements both auth.KeyStore and auth.UsageRecorder.
type APIKeyStore struct {
	pool *pgxpool.Pool
}

// NewAPIKeyStore returns a store instance.
func NewAPIKeyStore(pool *pgxpool.Pool) (*APIKeyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &APIKeyStore{pool: pool}, nil
}

// Lookup fetches the key row matching both the public key id and the
// secret digest. A wrong secret is indistinguishable from a missing key.
func (s *APIKeyStore) Lookup(ctx context.Context, keyID, secretHash string) (auth.APIKey, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT id, key_id, org_id, name, permissions, tier, active, expires_at, last_used_at, created_at
        FROM %s WHERE key_id = $1 AND secret_hash = $2
    `, APIKeysTable), keyID, secretHash)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.APIKey{}, auth.ErrKeyNotFound
		}
		return auth.APIKey{}, fmt.Errorf("lookup api key: %w", err)
	}
	return key, nil
}

// TouchLastUsed stamps the key's last-used timestamp.
func (s *APIKeyStore) TouchLastUsed(ctx context.Context, keyID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET last_used_at = NOW() WHERE key_id = $1
    `, APIKeysTable), keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// RecordUsage appends one analytics row for an API-key request.
func (s *APIKeyStore) RecordUsage(ctx context.Context, rec auth.UsageRecord) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (key_id, org_id, endpoint, method, status_code, latency_ms)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, APIKeyUsageTable),
		rec.KeyID, rec.OrgID, rec.Endpoint, rec.Method, rec.StatusCode, rec.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	return nil
}

// CreateAPIKeyParams captures the fields required to insert a key row.
// The secret itself is never stored, only its digest.
type CreateAPIKeyParams struct {
	KeyID       string
	SecretHash  string
	OrgID       uuid.UUID
	Name        string
	Permissions []string
	Tier        string
	ExpiresAt   *time.Time
}

// CreateAPIKey inserts a new key row and returns the persisted record.
func (s *APIKeyStore) CreateAPIKey(ctx context.Context, params CreateAPIKeyParams) (auth.APIKey, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (key_id, secret_hash, org_id, name, permissions, tier, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, key_id, org_id, name, permissions, tier, active, expires_at, last_used_at, created_at
    `, APIKeysTable),
		params.KeyID,
		params.SecretHash,
		params.OrgID,
		params.Name,
		params.Permissions,
		params.Tier,
		params.ExpiresAt,
	)

	key, err := scanAPIKey(row)
	if err != nil {
		return auth.APIKey{}, fmt.Errorf("create api key: %w", err)
	}
	return key, nil
}

// ListAPIKeys returns an organization's keys, newest first.
func (s *APIKeyStore) ListAPIKeys(ctx context.Context, orgID uuid.UUID) ([]auth.APIKey, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT id, key_id, org_id, name, permissions, tier, active, expires_at, last_used_at, created_at
        FROM %s WHERE org_id = $1
        ORDER BY created_at DESC
    `, APIKeysTable), orgID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]auth.APIKey, 0)
	for rows.Next() {
		key, scanErr := scanAPIKey(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan api key: %w", scanErr)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey deactivates a key. Revocation is permanent; a revoked key
// id is never re-issued.
func (s *APIKeyStore) RevokeAPIKey(ctx context.Context, orgID uuid.UUID, keyID string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET active = FALSE WHERE org_id = $1 AND key_id = $2
    `, APIKeysTable), orgID, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrKeyNotFound
	}
	return nil
}

func scanAPIKey(row pgx.Row) (auth.APIKey, error) {
	var key auth.APIKey
	err := row.Scan(
		&key.ID,
		&key.KeyID,
		&key.OrgID,
		&key.Name,
		&key.Permissions,
		&key.Tier,
		&key.Active,
		&key.ExpiresAt,
		&key.LastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return auth.APIKey{}, err
	}
	return key, nil
}
