package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	ch        chan []byte
	closeOnce sync.Once
}

func (s *fakeSubscription) Frames() <-chan []byte { return s.ch }

func (s *fakeSubscription) Close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

type fakeSource struct {
	mu   sync.Mutex
	subs map[string]*fakeSubscription
}

func (f *fakeSource) SubscribeFamily(_ context.Context, familyID string) FrameSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{ch: make(chan []byte, 16)}
	f.subs[familyID] = sub
	return sub
}

func (f *fakeSource) subscription(familyID string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[familyID]
}

type recordingHub struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (h *recordingHub) Broadcast(familyID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames[familyID] = append(h.frames[familyID], data)
}

func (h *recordingHub) frameCount(familyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames[familyID])
}

func TestRelay_PumpsFramesIntoHub(t *testing.T) {
	source := &fakeSource{subs: make(map[string]*fakeSubscription)}
	hub := &recordingHub{frames: make(map[string][][]byte)}
	relay := NewRelay(source, hub)
	t.Cleanup(relay.Shutdown)

	require.NoError(t, relay.Start("fam-1"))
	source.subscription("fam-1").ch <- []byte(`{"type":"chore_completed"}`)

	require.Eventually(t, func() bool { return hub.frameCount("fam-1") == 1 }, time.Second, time.Millisecond)
}

func TestRelay_StartIsIdempotentPerFamily(t *testing.T) {
	source := &fakeSource{subs: make(map[string]*fakeSubscription)}
	hub := &recordingHub{frames: make(map[string][][]byte)}
	relay := NewRelay(source, hub)
	t.Cleanup(relay.Shutdown)

	require.NoError(t, relay.Start("fam-1"))
	first := source.subscription("fam-1")
	require.NoError(t, relay.Start("fam-1"))

	assert.Same(t, first, source.subscription("fam-1"), "second Start must not resubscribe")
}

func TestRelay_StopEndsDelivery(t *testing.T) {
	source := &fakeSource{subs: make(map[string]*fakeSubscription)}
	hub := &recordingHub{frames: make(map[string][][]byte)}
	relay := NewRelay(source, hub)

	require.NoError(t, relay.Start("fam-1"))
	sub := source.subscription("fam-1")
	relay.Stop("fam-1")

	// Subscription is closed; nothing more reaches the hub.
	select {
	case _, open := <-sub.ch:
		assert.False(t, open, "Stop must close the subscription")
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}
	assert.Equal(t, 0, hub.frameCount("fam-1"))

	// Stopping again is a no-op.
	relay.Stop("fam-1")
}
