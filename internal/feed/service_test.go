package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

type fakeChoreRepo struct {
	chores map[uuid.UUID]*domain.Chore
}

func (r *fakeChoreRepo) Get(_ context.Context, id uuid.UUID) (*domain.Chore, error) {
	chore, ok := r.chores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return chore, nil
}

type fakeMemberRepo struct {
	points      map[uuid.UUID]int
	leaderboard []domain.LeaderboardEntry
	pointsErr   error
}

func (r *fakeMemberRepo) AddPoints(_ context.Context, id uuid.UUID, points int) error {
	if r.pointsErr != nil {
		return r.pointsErr
	}
	r.points[id] += points
	return nil
}

func (r *fakeMemberRepo) Leaderboard(_ context.Context, _ string) ([]domain.LeaderboardEntry, error) {
	return r.leaderboard, nil
}

type fakeActivityRepo struct {
	records []domain.ActivityRecord
}

func (r *fakeActivityRepo) Record(_ context.Context, rec domain.ActivityRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeActivityRepo) ListRecent(_ context.Context, _ string, limit int) ([]domain.ActivityRecord, error) {
	if limit > len(r.records) {
		limit = len(r.records)
	}
	return r.records[:limit], nil
}

type fakePublisher struct {
	leaderboards [][]domain.LeaderboardEntry
	activities   []domain.ActivityRecord
	publishErr   error
}

func (p *fakePublisher) PublishLeaderboard(_ context.Context, _ string, entries []domain.LeaderboardEntry) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.leaderboards = append(p.leaderboards, entries)
	return nil
}

func (p *fakePublisher) PublishChoreCompleted(_ context.Context, _ string, rec domain.ActivityRecord) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.activities = append(p.activities, rec)
	return nil
}

func testService(chores *fakeChoreRepo, members *fakeMemberRepo, activities *fakeActivityRepo, publisher *fakePublisher) *Service {
	return NewService(chores, members, activities, publisher, clockwork.NewFakeClock())
}

func TestCompleteChore_AwardsPointsAndPublishes(t *testing.T) {
	choreID := uuid.New()
	memberID := uuid.New()

	chores := &fakeChoreRepo{chores: map[uuid.UUID]*domain.Chore{
		choreID: {ID: choreID, FamilyID: "fam-1", Name: "dishes", Points: 5},
	}}
	members := &fakeMemberRepo{
		points:      map[uuid.UUID]int{},
		leaderboard: []domain.LeaderboardEntry{{MemberID: memberID.String(), Points: 5}},
	}
	activities := &fakeActivityRepo{}
	publisher := &fakePublisher{}
	svc := testService(chores, members, activities, publisher)

	rec, err := svc.CompleteChore(context.Background(), "fam-1", choreID, memberID)
	require.NoError(t, err)

	assert.Equal(t, 5, members.points[memberID])
	assert.Equal(t, "dishes", rec.ChoreName)
	assert.Equal(t, memberID.String(), rec.MemberID)

	require.Len(t, activities.records, 1)
	require.Len(t, publisher.activities, 1)
	assert.Equal(t, rec.ID, publisher.activities[0].ID)
	require.Len(t, publisher.leaderboards, 1)
	assert.Equal(t, members.leaderboard, publisher.leaderboards[0])
}

func TestCompleteChore_UnknownChore(t *testing.T) {
	svc := testService(
		&fakeChoreRepo{chores: map[uuid.UUID]*domain.Chore{}},
		&fakeMemberRepo{points: map[uuid.UUID]int{}},
		&fakeActivityRepo{},
		&fakePublisher{},
	)

	_, err := svc.CompleteChore(context.Background(), "fam-1", uuid.New(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteChore_RejectsForeignFamily(t *testing.T) {
	choreID := uuid.New()
	chores := &fakeChoreRepo{chores: map[uuid.UUID]*domain.Chore{
		choreID: {ID: choreID, FamilyID: "fam-A", Name: "dishes", Points: 5},
	}}
	members := &fakeMemberRepo{points: map[uuid.UUID]int{}}
	svc := testService(chores, members, &fakeActivityRepo{}, &fakePublisher{})

	_, err := svc.CompleteChore(context.Background(), "fam-B", choreID, uuid.New())
	require.ErrorIs(t, err, domain.ErrFamilyMismatch)
	assert.Empty(t, members.points, "no points awarded across family boundaries")
}

func TestCompleteChore_PublishFailureIsNotFatal(t *testing.T) {
	choreID := uuid.New()
	memberID := uuid.New()
	chores := &fakeChoreRepo{chores: map[uuid.UUID]*domain.Chore{
		choreID: {ID: choreID, FamilyID: "fam-1", Name: "vacuum", Points: 3},
	}}
	members := &fakeMemberRepo{points: map[uuid.UUID]int{}}
	activities := &fakeActivityRepo{}
	publisher := &fakePublisher{publishErr: errors.New("redis down")}
	svc := testService(chores, members, activities, publisher)

	rec, err := svc.CompleteChore(context.Background(), "fam-1", choreID, memberID)
	require.NoError(t, err, "live delivery is best-effort; persistence succeeded")
	assert.Equal(t, 3, members.points[memberID])
	require.Len(t, activities.records, 1)
	assert.Equal(t, rec.ID, activities.records[0].ID)
}
