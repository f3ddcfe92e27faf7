// Package feed turns chore completions into points, activity records, and
// published live-feed events.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

// Service orchestrates the write path of the feed.
type Service struct {
	chores     domain.ChoreRepository
	members    domain.MemberRepository
	activities domain.ActivityRepository
	publisher  domain.EventPublisher
	clock      clockwork.Clock
}

func NewService(
	chores domain.ChoreRepository,
	members domain.MemberRepository,
	activities domain.ActivityRepository,
	publisher domain.EventPublisher,
	clock clockwork.Clock,
) *Service {
	return &Service{
		chores:     chores,
		members:    members,
		activities: activities,
		publisher:  publisher,
		clock:      clock,
	}
}

// CompleteChore awards the chore's points to the member, records the activity,
// and publishes chore_completed and leaderboard_update events for the family.
// Publish failures are logged, not returned: the completion has already been
// persisted and live delivery is best-effort.
func (s *Service) CompleteChore(ctx context.Context, familyID string, choreID, memberID uuid.UUID) (*domain.ActivityRecord, error) {
	chore, err := s.chores.Get(ctx, choreID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chore: %w", err)
	}
	if chore.FamilyID != familyID {
		return nil, domain.ErrFamilyMismatch
	}

	if err := s.members.AddPoints(ctx, memberID, chore.Points); err != nil {
		return nil, fmt.Errorf("failed to award points: %w", err)
	}

	rec := domain.ActivityRecord{
		ID:         uuid.New(),
		FamilyID:   familyID,
		MemberID:   memberID.String(),
		ChoreID:    chore.ID.String(),
		ChoreName:  chore.Name,
		Points:     chore.Points,
		OccurredAt: s.clock.Now().UTC(),
	}
	if err := s.activities.Record(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}

	if err := s.publisher.PublishChoreCompleted(ctx, familyID, rec); err != nil {
		slog.Warn("Failed to publish chore_completed", "family_id", familyID, "error", err)
	}

	entries, err := s.members.Leaderboard(ctx, familyID)
	if err != nil {
		slog.Warn("Failed to load leaderboard for publish", "family_id", familyID, "error", err)
		return &rec, nil
	}
	if err := s.publisher.PublishLeaderboard(ctx, familyID, entries); err != nil {
		slog.Warn("Failed to publish leaderboard_update", "family_id", familyID, "error", err)
	}

	return &rec, nil
}

// Leaderboard returns the current points standing. This seeds the static
// fallback view consumers render while the live channel is degraded.
func (s *Service) Leaderboard(ctx context.Context, familyID string) ([]domain.LeaderboardEntry, error) {
	entries, err := s.members.Leaderboard(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

// RecentActivity returns the newest activity records for a family.
func (s *Service) RecentActivity(ctx context.Context, familyID string, limit int) ([]domain.ActivityRecord, error) {
	records, err := s.activities.ListRecent(ctx, familyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	return records, nil
}
