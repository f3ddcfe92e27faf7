package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

// ChoreRepo implements domain.ChoreRepository backed by PostgreSQL.
type ChoreRepo struct {
	pool *pgxpool.Pool
}

func NewChoreRepo(pool *pgxpool.Pool) *ChoreRepo {
	return &ChoreRepo{pool: pool}
}

func (r *ChoreRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Chore, error) {
	const query = `SELECT id, family_id, name, points FROM chores WHERE id = $1`

	var chore domain.Chore
	err := r.pool.QueryRow(ctx, query, id).Scan(&chore.ID, &chore.FamilyID, &chore.Name, &chore.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chore: %w", err)
	}
	return &chore, nil
}
