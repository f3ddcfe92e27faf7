package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/geokazi/chores2026-sub003/internal/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// clientWriter serializes all writes to one connection through a single
// goroutine and keeps the connection alive with pings.
type clientWriter struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	sendCh   chan []byte
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClientWriter(conn *websocket.Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan []byte, messageBufferSize),
		doneCh: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-cw.doneCh:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		_ = cw.conn.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneCh)
		// Wait for run to exit so the close frame is not a concurrent write.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.conn.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.conn.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
