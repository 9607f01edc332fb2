package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/classbridge/ptohub/database"
)

// Bootstrap applies the full DDL in a single transaction, in dependency
// order: organizations, profiles, api_keys (plus usage), permission
// overrides, rate-limit violations, events.
//
// SQL is embedded at build time so binaries stay self-contained. The
// helper is idempotent and intended for startup and tests.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.OrganizationsSQL)...)
	statements = append(statements, splitStatements(sqlassets.ProfilesSQL)...)
	statements = append(statements, splitStatements(sqlassets.APIKeysSQL)...)
	statements = append(statements, splitStatements(sqlassets.PermissionOverridesSQL)...)
	statements = append(statements, splitStatements(sqlassets.RateLimitViolationsSQL)...)
	statements = append(statements, splitStatements(sqlassets.EventsSQL)...)

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}
