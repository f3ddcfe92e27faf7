package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

func familyChannel(familyID string) string {
	return "family:" + familyID + ":feed"
}

// PubSub provides cross-instance feed fan-out via Redis Pub/Sub. Published
// payloads are the exact JSON frames forwarded to WebSocket clients.
type PubSub struct {
	rdb *goredis.Client
}

// NewPubSub creates a new PubSub instance.
func NewPubSub(client *Client) *PubSub {
	return &PubSub{rdb: client.rdb}
}

var _ domain.EventPublisher = (*PubSub)(nil)

// PublishLeaderboard publishes a leaderboard_update frame for a family.
func (ps *PubSub) PublishLeaderboard(ctx context.Context, familyID string, entries []domain.LeaderboardEntry) error {
	frame := struct {
		Type        string                    `json:"type"`
		Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	}{Type: "leaderboard_update", Leaderboard: entries}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard frame: %w", err)
	}
	return ps.rdb.Publish(ctx, familyChannel(familyID), data).Err()
}

// PublishChoreCompleted publishes a chore_completed frame for a family.
func (ps *PubSub) PublishChoreCompleted(ctx context.Context, familyID string, rec domain.ActivityRecord) error {
	frame := struct {
		Type     string                `json:"type"`
		Activity domain.ActivityRecord `json:"activity"`
	}{Type: "chore_completed", Activity: rec}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal activity frame: %w", err)
	}
	return ps.rdb.Publish(ctx, familyChannel(familyID), data).Err()
}

// Subscription represents an active Pub/Sub subscription for a family.
type Subscription struct {
	sub    *goredis.PubSub
	Ch     <-chan []byte
	cancel context.CancelFunc
}

// Frames returns the channel delivering raw feed frames.
func (s *Subscription) Frames() <-chan []byte {
	return s.Ch
}

// Close unsubscribes and closes the subscription.
func (s *Subscription) Close() {
	s.cancel()
	_ = s.sub.Close()
}

// SubscribeFamily subscribes to feed frames for a family. Returns a
// Subscription whose channel receives raw frames; call Close when done.
func (ps *PubSub) SubscribeFamily(ctx context.Context, familyID string) *Subscription {
	channel := familyChannel(familyID)
	sub := ps.rdb.Subscribe(ctx, channel)

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan []byte, 16)

	go func() {
		defer close(ch)
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case ch <- []byte(msg.Payload):
				default:
					slog.Warn("Dropping feed frame: subscriber channel full", "family_id", familyID)
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{
		sub:    sub,
		Ch:     ch,
		cancel: cancel,
	}
}
