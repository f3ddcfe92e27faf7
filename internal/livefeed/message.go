package livefeed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

// ErrMalformedMessage indicates an inbound frame that could not be decoded.
// Such frames are logged and dropped; they never reach subscribers.
var ErrMalformedMessage = errors.New("malformed message")

// Known wire types. Anything else decodes to Generic.
const (
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeChoreCompleted    = "chore_completed"
	TypeFeatureDisabled   = "feature_disabled"
	TypeFallbackMode      = "fallback_mode"
)

// Message is the closed union of frames a feed channel can deliver.
type Message interface {
	// Type returns the wire type tag of the message.
	Type() string
}

// LeaderboardUpdate carries the full points standing for the family.
type LeaderboardUpdate struct {
	Entries []domain.LeaderboardEntry
}

func (LeaderboardUpdate) Type() string { return TypeLeaderboardUpdate }

// ActivityUpdate carries a single completed-chore activity record.
type ActivityUpdate struct {
	Record domain.ActivityRecord
}

func (ActivityUpdate) Type() string { return TypeChoreCompleted }

// Notice is a server-side status frame (feature gating, fallback mode).
// Delivered to all-message subscribers only.
type Notice struct {
	Kind string
}

func (n Notice) Type() string { return n.Kind }

// Generic wraps a frame with an unrecognized type tag. It is still delivered
// to all-message subscribers so nothing is dropped silently.
type Generic struct {
	Kind    string
	Payload json.RawMessage
}

func (g Generic) Type() string { return g.Kind }

// DecodeMessage parses a raw transport frame into the message union.
// A frame without a type tag, or with a payload that does not match its tag,
// fails with ErrMalformedMessage.
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformedMessage)
	}

	switch probe.Type {
	case TypeLeaderboardUpdate:
		var frame struct {
			Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		return LeaderboardUpdate{Entries: frame.Leaderboard}, nil

	case TypeChoreCompleted:
		var frame struct {
			Activity domain.ActivityRecord `json:"activity"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
		}
		return ActivityUpdate{Record: frame.Activity}, nil

	case TypeFeatureDisabled, TypeFallbackMode:
		return Notice{Kind: probe.Type}, nil

	default:
		return Generic{Kind: probe.Type, Payload: json.RawMessage(data)}, nil
	}
}
