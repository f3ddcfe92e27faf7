package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

// ActivityRepo implements domain.ActivityRepository backed by PostgreSQL.
type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) Record(ctx context.Context, rec domain.ActivityRecord) error {
	const query = `
		INSERT INTO activities (id, family_id, member_id, chore_id, chore_name, points, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.FamilyID, rec.MemberID, rec.ChoreID, rec.ChoreName, rec.Points, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

func (r *ActivityRepo) ListRecent(ctx context.Context, familyID string, limit int) ([]domain.ActivityRecord, error) {
	const query = `
		SELECT id, family_id, member_id, chore_id, chore_name, points, occurred_at
		FROM activities
		WHERE family_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var records []domain.ActivityRecord
	for rows.Next() {
		var rec domain.ActivityRecord
		if err := rows.Scan(&rec.ID, &rec.FamilyID, &rec.MemberID, &rec.ChoreID,
			&rec.ChoreName, &rec.Points, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity rows: %w", err)
	}
	return records, nil
}
