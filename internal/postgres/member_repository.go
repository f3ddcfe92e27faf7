package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

// MemberRepo implements domain.MemberRepository backed by PostgreSQL.
type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) AddPoints(ctx context.Context, id uuid.UUID, points int) error {
	const query = `UPDATE members SET points = points + $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, points)
	if err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MemberRepo) Leaderboard(ctx context.Context, familyID string) ([]domain.LeaderboardEntry, error) {
	const query = `SELECT id, points FROM members WHERE family_id = $1 ORDER BY points DESC, name ASC`

	rows, err := r.pool.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.MemberID, &entry.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}
	return entries, nil
}
