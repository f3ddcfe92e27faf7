package feed

import (
	"context"
	"log/slog"
	"sync"
)

// Broadcaster is the hub-side surface the relay pushes frames into.
type Broadcaster interface {
	Broadcast(familyID string, data []byte)
}

// FrameSource is the pub/sub surface the relay pulls frames from.
type FrameSource interface {
	SubscribeFamily(ctx context.Context, familyID string) FrameSubscription
}

// FrameSubscription is one active family subscription.
type FrameSubscription interface {
	Frames() <-chan []byte
	Close()
}

// Relay pipes published feed frames from pub/sub into the WebSocket hub,
// one subscription per family with connected clients. Start and Stop are
// driven by the hub's first-join/last-leave callbacks.
type Relay struct {
	source FrameSource
	hub    Broadcaster

	mu   sync.Mutex
	subs map[string]FrameSubscription
}

func NewRelay(source FrameSource, hub Broadcaster) *Relay {
	return &Relay{
		source: source,
		hub:    hub,
		subs:   make(map[string]FrameSubscription),
	}
}

// Start opens the upstream subscription for a family and pumps its frames
// into the hub until the subscription closes. Idempotent per family.
func (r *Relay) Start(familyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[familyID]; exists {
		return nil
	}

	sub := r.source.SubscribeFamily(context.Background(), familyID)
	r.subs[familyID] = sub

	go func() {
		for data := range sub.Frames() {
			r.hub.Broadcast(familyID, data)
		}
		slog.Debug("Feed relay stopped", "family_id", familyID)
	}()

	slog.Info("Feed relay started", "family_id", familyID)
	return nil
}

// Stop closes the upstream subscription for a family.
func (r *Relay) Stop(familyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subs[familyID]
	if !exists {
		return
	}
	delete(r.subs, familyID)
	sub.Close()
}

// Shutdown closes every active subscription.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for familyID, sub := range r.subs {
		sub.Close()
		delete(r.subs, familyID)
	}
}
