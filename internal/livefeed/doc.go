// Package livefeed implements the shared real-time update channel used by
// dashboard consumers.
//
// A ChannelRegistry owns at most one transport connection per family and fans
// inbound frames out to any number of subscribers. Subscribers register typed
// callbacks and outlive the connection itself: the transport is opened lazily
// on the first subscription, survives reconnects (fixed delay, no backoff
// cap), and is torn down when the last subscriber cancels. Uses a single
// goroutine + command channel (no mutexes). Connection loss is a state, not an
// error: consumers observe it through the liveness signal and keep rendering
// their last known data.
package livefeed
