package livefeed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geokazi/chores2026-sub003/internal/domain"
	"github.com/geokazi/chores2026-sub003/internal/metrics"
)

const (
	defaultReconnectDelay = 3 * time.Second
	defaultConnectTimeout = 10 * time.Second
	queryTimeout          = 5 * time.Second
)

type channelState int

const (
	stateClosed channelState = iota
	stateConnecting
	stateOpen
	stateReconnecting
)

func (s channelState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Subscription holds the callbacks a consumer registers against the feed.
// All fields are optional; a nil callback is simply skipped during fan-out.
// Callbacks run on the registry goroutine and must not block.
type Subscription struct {
	// OnLeaderboard receives the member/points list of leaderboard updates.
	OnLeaderboard func([]domain.LeaderboardEntry)
	// OnActivity receives completed-chore activity records.
	OnActivity func(domain.ActivityRecord)
	// OnMessage receives every decoded message regardless of type.
	OnMessage func(Message)
	// OnLive is invoked with the current liveness on registration and on
	// every subsequent change. False means the consumer should keep showing
	// its last known data (degraded mode).
	OnLive func(bool)
}

// CancelFunc unregisters a subscription. Safe to call more than once.
type CancelFunc func()

// Options tunes the registry. Zero values select the defaults.
type Options struct {
	// ReconnectDelay is the fixed wait before a reconnect attempt (default 3s).
	ReconnectDelay time.Duration
	// ConnectTimeout bounds a single dial attempt (default 10s). A timed-out
	// handshake counts as a failed attempt and enters the reconnect path.
	ConnectTimeout time.Duration
}

// --- Command types ---

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type subscribeCmd struct {
	baseRegistryCmd
	familyID string
	sub      Subscription
	reply    chan uint64
}

type unsubscribeCmd struct {
	baseRegistryCmd
	id uint64
}

type dialResultCmd struct {
	baseRegistryCmd
	gen       uint64
	transport Transport
	err       error
}

type transportLostCmd struct {
	baseRegistryCmd
	gen uint64
	err error
}

type frameCmd struct {
	baseRegistryCmd
	gen  uint64
	data []byte
}

type reconnectDueCmd struct {
	baseRegistryCmd
	gen uint64
}

type liveQueryCmd struct {
	baseRegistryCmd
	reply chan bool
}

type closeCmd struct {
	baseRegistryCmd
}

// ChannelRegistry owns the single live transport per family and the
// process-wide subscriber set. Construct one per composition root; it is not
// a package-level singleton.
type ChannelRegistry struct {
	cmdCh  chan registryCmd
	done   chan struct{}
	clock  clockwork.Clock
	dialer Dialer

	reconnectDelay time.Duration
	connectTimeout time.Duration

	// State below is owned by the run goroutine.
	st             channelState
	familyID       string
	transport      Transport
	gen            uint64 // connection generation; events from older transports are ignored
	subs           map[uint64]Subscription
	nextSubID      uint64
	live           bool
	reconnectTimer clockwork.Timer
}

// NewChannelRegistry creates a registry and starts its goroutine.
func NewChannelRegistry(dialer Dialer, clock clockwork.Clock, opts Options) *ChannelRegistry {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	r := &ChannelRegistry{
		cmdCh:          make(chan registryCmd, 256),
		done:           make(chan struct{}),
		clock:          clock,
		dialer:         dialer,
		reconnectDelay: opts.ReconnectDelay,
		connectTimeout: opts.ConnectTimeout,
		subs:           make(map[uint64]Subscription),
		nextSubID:      1,
	}
	go r.run()
	return r
}

// Subscribe registers the callbacks and lazily opens the channel for the
// given family. If a channel for a different family is open it is closed and
// replaced. Panics on an empty family ID: that is a caller defect, not an
// environmental condition.
func (r *ChannelRegistry) Subscribe(familyID string, sub Subscription) CancelFunc {
	if familyID == "" {
		panic("livefeed: Subscribe called with empty family ID")
	}

	reply := make(chan uint64, 1)
	r.send(subscribeCmd{familyID: familyID, sub: sub, reply: reply})

	var id uint64
	select {
	case id = <-reply:
	case <-r.done:
		return func() {}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.send(unsubscribeCmd{id: id})
		})
	}
}

// Live reports whether the channel is currently open and receiving data.
// False means consumers should render their last known snapshot.
func (r *ChannelRegistry) Live() bool {
	reply := make(chan bool, 1)
	r.send(liveQueryCmd{reply: reply})

	timer := r.clock.NewTimer(queryTimeout)
	defer timer.Stop()

	select {
	case live := <-reply:
		return live
	case <-r.done:
		return false
	case <-timer.Chan():
		slog.Warn("Live query timed out", "timeout", queryTimeout)
		return false
	}
}

// Close shuts the registry down, closing any open transport and dropping all
// subscriptions. Blocks until the registry goroutine has exited.
func (r *ChannelRegistry) Close() {
	r.send(closeCmd{})
	<-r.done
}

// send enqueues a command unless the registry has already shut down.
func (r *ChannelRegistry) send(cmd registryCmd) {
	select {
	case r.cmdCh <- cmd:
	case <-r.done:
	}
}

func (r *ChannelRegistry) run() {
	defer close(r.done)

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case subscribeCmd:
			r.handleSubscribe(c)
		case unsubscribeCmd:
			r.handleUnsubscribe(c)
		case dialResultCmd:
			r.handleDialResult(c)
		case transportLostCmd:
			r.handleTransportLost(c)
		case frameCmd:
			r.handleFrame(c)
		case reconnectDueCmd:
			r.handleReconnectDue(c)
		case liveQueryCmd:
			c.reply <- r.live
		case closeCmd:
			r.handleShutdown()
			return
		}
	}
}

func (r *ChannelRegistry) handleSubscribe(c subscribeCmd) {
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = c.sub
	metrics.LiveFeedSubscribers.Set(float64(len(r.subs)))
	c.reply <- id

	// Tell the new subscriber the current liveness so the UI can initialize
	// its LIVE affordance without waiting for a transition.
	if c.sub.OnLive != nil {
		r.invoke(func() { c.sub.OnLive(r.live) })
	}

	switch {
	case r.st == stateClosed:
		r.familyID = c.familyID
		r.startConnect()
	case r.familyID == c.familyID:
		// Channel already serving this family in some stage of its
		// lifecycle; registration is all that was needed.
	default:
		// Only one family can be live at a time: force-close the old
		// channel and open one for the newly requested family.
		slog.Info("Switching feed channel", "from_family", r.familyID, "to_family", c.familyID)
		r.closeTransport()
		r.stopReconnectTimer()
		r.setLive(false)
		r.familyID = c.familyID
		r.startConnect()
	}
}

func (r *ChannelRegistry) handleUnsubscribe(c unsubscribeCmd) {
	if _, ok := r.subs[c.id]; !ok {
		return // already removed; teardown order is not guaranteed
	}
	delete(r.subs, c.id)
	metrics.LiveFeedSubscribers.Set(float64(len(r.subs)))

	if len(r.subs) > 0 {
		return
	}

	// Last subscriber left: close the channel so a future Subscribe starts
	// fresh. An in-flight dial is not cancelled here; its result is discarded
	// on arrival.
	slog.Debug("Last feed subscriber left, closing channel", "family_id", r.familyID)
	r.closeTransport()
	r.stopReconnectTimer()
	r.setLive(false)
	r.toClosed()
}

func (r *ChannelRegistry) startConnect() {
	r.setState(stateConnecting)
	r.gen++

	gen := r.gen
	familyID := r.familyID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.connectTimeout)
		defer cancel()
		t, err := r.dialer.Dial(ctx, familyID)
		r.send(dialResultCmd{gen: gen, transport: t, err: err})
	}()
}

func (r *ChannelRegistry) handleDialResult(c dialResultCmd) {
	if c.gen != r.gen {
		// Result of an attempt superseded by a family switch or shutdown.
		if c.err == nil {
			_ = c.transport.Close()
		}
		return
	}

	if len(r.subs) == 0 {
		if c.err == nil {
			_ = c.transport.Close()
		}
		r.toClosed()
		return
	}

	if c.err != nil {
		// Expected condition for a best-effort live feature: absorb into
		// state and let the reconnect policy handle it.
		slog.Warn("Feed connect failed", "family_id", r.familyID, "error", c.err)
		r.enterReconnecting()
		return
	}

	r.transport = c.transport
	r.setState(stateOpen)
	r.setLive(true)
	slog.Info("Feed channel open", "family_id", r.familyID)

	go r.readLoop(c.gen, c.transport)
}

func (r *ChannelRegistry) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			r.send(transportLostCmd{gen: gen, err: err})
			return
		}
		r.send(frameCmd{gen: gen, data: data})
	}
}

func (r *ChannelRegistry) handleTransportLost(c transportLostCmd) {
	if c.gen != r.gen {
		return
	}

	slog.Warn("Feed transport lost", "family_id", r.familyID, "error", c.err)
	r.closeTransport()
	r.setLive(false)

	if len(r.subs) == 0 {
		r.toClosed()
		return
	}
	r.enterReconnecting()
}

func (r *ChannelRegistry) enterReconnecting() {
	r.setState(stateReconnecting)

	gen := r.gen
	r.reconnectTimer = r.clock.AfterFunc(r.reconnectDelay, func() {
		r.send(reconnectDueCmd{gen: gen})
	})
}

func (r *ChannelRegistry) handleReconnectDue(c reconnectDueCmd) {
	if c.gen != r.gen || r.st != stateReconnecting {
		return
	}

	if len(r.subs) == 0 {
		// Abandoned session: do not reconnect.
		r.toClosed()
		return
	}

	metrics.LiveFeedReconnectsTotal.Inc()
	slog.Info("Reconnecting feed channel", "family_id", r.familyID)
	r.startConnect()
}

func (r *ChannelRegistry) handleFrame(c frameCmd) {
	if c.gen != r.gen {
		return
	}

	msg, err := DecodeMessage(c.data)
	if err != nil {
		// Logged and dropped; never reaches subscribers and does not affect
		// channel state.
		slog.Warn("Dropping malformed feed frame", "family_id", r.familyID, "error", err)
		metrics.LiveFeedMalformedFrames.Inc()
		return
	}

	r.route(msg)
}

// route fans the message out to a snapshot of the subscriber set, in
// registration order. A panicking handler is isolated so the rest of the
// pass still runs.
func (r *ChannelRegistry) route(msg Message) {
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	snapshot := make([]Subscription, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, r.subs[id])
	}

	for _, sub := range snapshot {
		switch m := msg.(type) {
		case LeaderboardUpdate:
			if sub.OnLeaderboard != nil {
				r.invoke(func() { sub.OnLeaderboard(m.Entries) })
			}
		case ActivityUpdate:
			if sub.OnActivity != nil {
				r.invoke(func() { sub.OnActivity(m.Record) })
			}
		}
		if sub.OnMessage != nil {
			r.invoke(func() { sub.OnMessage(msg) })
		}
	}
}

// invoke runs a subscriber callback with panic isolation.
func (r *ChannelRegistry) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Feed subscriber panicked", "family_id", r.familyID, "panic", rec)
			metrics.LiveFeedHandlerPanics.Inc()
		}
	}()
	fn()
}

func (r *ChannelRegistry) setLive(live bool) {
	if r.live == live {
		return
	}
	r.live = live

	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		sub := r.subs[id]
		if sub.OnLive != nil {
			r.invoke(func() { sub.OnLive(live) })
		}
	}
}

func (r *ChannelRegistry) setState(st channelState) {
	r.st = st
	metrics.LiveFeedState.Set(float64(st))
}

func (r *ChannelRegistry) toClosed() {
	r.setState(stateClosed)
	r.familyID = ""
	r.gen++ // invalidate any in-flight dial or timer
}

func (r *ChannelRegistry) closeTransport() {
	if r.transport != nil {
		_ = r.transport.Close()
		r.transport = nil
	}
}

func (r *ChannelRegistry) stopReconnectTimer() {
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
		r.reconnectTimer = nil
	}
}

func (r *ChannelRegistry) handleShutdown() {
	r.closeTransport()
	r.stopReconnectTimer()
	r.setLive(false)
	r.subs = make(map[uint64]Subscription)
	metrics.LiveFeedSubscribers.Set(0)
	r.toClosed()
}
