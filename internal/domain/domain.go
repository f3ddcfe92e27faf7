// Package domain holds the core entities and the interfaces implemented by
// the storage and messaging adapters.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrFamilyMismatch indicates an entity belongs to a different family
	// than the one named in the request.
	ErrFamilyMismatch = errors.New("entity belongs to a different family")
)

// Family is a household sharing one chore board.
type Family struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Member is a person in a family. Points accumulate as chores are completed.
type Member struct {
	ID       uuid.UUID
	FamilyID string
	Name     string
	Points   int
}

// Chore is a task worth a fixed number of points.
type Chore struct {
	ID       uuid.UUID
	FamilyID string
	Name     string
	Points   int
}

// LeaderboardEntry is one row of a family's points standing.
// The JSON shape matches the wire frames pushed to live clients.
type LeaderboardEntry struct {
	MemberID string `json:"user_id"`
	Points   int    `json:"points"`
}

// ActivityRecord captures a single completed chore for the activity feed.
type ActivityRecord struct {
	ID         uuid.UUID `json:"id"`
	FamilyID   string    `json:"family_id"`
	MemberID   string    `json:"member_id"`
	ChoreID    string    `json:"chore_id"`
	ChoreName  string    `json:"chore_name"`
	Points     int       `json:"points"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChoreRepository provides read access to chores.
type ChoreRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Chore, error)
}

// MemberRepository manages members and their point totals.
type MemberRepository interface {
	AddPoints(ctx context.Context, id uuid.UUID, points int) error
	Leaderboard(ctx context.Context, familyID string) ([]LeaderboardEntry, error)
}

// ActivityRepository persists and lists activity records.
type ActivityRepository interface {
	Record(ctx context.Context, rec ActivityRecord) error
	ListRecent(ctx context.Context, familyID string, limit int) ([]ActivityRecord, error)
}

// EventPublisher pushes feed events to every server instance serving the family.
type EventPublisher interface {
	PublishLeaderboard(ctx context.Context, familyID string, entries []LeaderboardEntry) error
	PublishChoreCompleted(ctx context.Context, familyID string, rec ActivityRecord) error
}
