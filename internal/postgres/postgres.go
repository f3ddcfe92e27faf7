// Package postgres implements the domain repositories on pgx.
//
// Expected schema (managed outside this service):
//
//	families   (id TEXT PRIMARY KEY, name TEXT, created_at TIMESTAMPTZ)
//	members    (id UUID PRIMARY KEY, family_id TEXT, name TEXT, points INT)
//	chores     (id UUID PRIMARY KEY, family_id TEXT, name TEXT, points INT)
//	activities (id UUID PRIMARY KEY, family_id TEXT, member_id UUID,
//	            chore_id UUID, chore_name TEXT, points INT, occurred_at TIMESTAMPTZ)
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
