// Package hub manages server-side WebSocket connections grouped by family.
//
// Uses the actor pattern: a single goroutine owns all connection maps and
// consumes typed commands from a channel, so no mutexes are needed.
// Per-connection writer goroutines absorb slow clients.
package hub

import (
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/geokazi/chores2026-sub003/internal/metrics"
)

const maxClientsPerFamily = 50

// --- Command types ---

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type joinCmd struct {
	baseHubCmd
	familyID string
	conn     *websocket.Conn
	errCh    chan error
}

type leaveCmd struct {
	baseHubCmd
	familyID string
	conn     *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	familyID string
	data     []byte
}

type clientCountCmd struct {
	baseHubCmd
	familyID string
	replyCh  chan int
}

type firstJoinResultCmd struct {
	baseHubCmd
	familyID string
	err      error
}

type stopCmd struct {
	baseHubCmd
}

type familyClients map[*websocket.Conn]*clientWriter

// Hub fans published feed frames out to every client watching a family.
//
// onFirstJoin is called when the first client of a family connects on this
// instance (used to start the upstream subscription); a non-nil error rejects
// all clients queued for that family. onLastLeave is called when the last
// client disconnects.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	clients     map[string]familyClients
	pendingJoin map[string][]joinCmd
	onFirstJoin func(familyID string) error
	onLastLeave func(familyID string)
	done        chan struct{}
}

func NewHub(onFirstJoin func(string) error, onLastLeave func(string), clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		clients:     make(map[string]familyClients),
		pendingJoin: make(map[string][]joinCmd),
		onFirstJoin: onFirstJoin,
		onLastLeave: onLastLeave,
		done:        make(chan struct{}),
	}
	go h.run()
	return h
}

// Join adds a client connection to a family channel. Blocks until the family
// is active (its upstream subscription is running) or activation failed.
func (h *Hub) Join(familyID string, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- joinCmd{familyID: familyID, conn: conn, errCh: errCh}
	return <-errCh
}

// Leave removes a client connection from a family channel.
func (h *Hub) Leave(familyID string, conn *websocket.Conn) {
	h.cmdCh <- leaveCmd{familyID: familyID, conn: conn}
}

// Broadcast fans a raw frame out to every client of the family.
func (h *Hub) Broadcast(familyID string, data []byte) {
	h.cmdCh <- broadcastCmd{familyID: familyID, data: data}
}

// ClientCount returns the number of connected clients for a family.
func (h *Hub) ClientCount(familyID string) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{familyID: familyID, replyCh: replyCh}
	return <-replyCh
}

// Stop shuts the hub down, closing all client connections.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case joinCmd:
			h.handleJoin(c)
		case leaveCmd:
			h.handleLeave(c.familyID, c.conn)
		case broadcastCmd:
			h.handleBroadcast(c)
		case clientCountCmd:
			c.replyCh <- len(h.clients[c.familyID])
		case firstJoinResultCmd:
			h.handleFirstJoinResult(c)
		case stopCmd:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleJoin(c joinCmd) {
	// Family already active — add the client directly.
	if clients, exists := h.clients[c.familyID]; exists {
		if len(clients) >= maxClientsPerFamily {
			slog.Warn("Rejecting client: max clients reached", "family_id", c.familyID, "max_clients", maxClientsPerFamily)
			c.conn.Close()
			c.errCh <- fmt.Errorf("max clients per family (%d) reached", maxClientsPerFamily)
			return
		}
		h.addClient(clients, c)
		return
	}

	// Activation in flight — queue this client behind it.
	if _, exists := h.pendingJoin[c.familyID]; exists {
		h.pendingJoin[c.familyID] = append(h.pendingJoin[c.familyID], c)
		return
	}

	// First client for this family — activate asynchronously.
	if h.onFirstJoin != nil {
		h.pendingJoin[c.familyID] = []joinCmd{c}
		familyID := c.familyID
		go func() {
			err := h.onFirstJoin(familyID)
			h.cmdCh <- firstJoinResultCmd{familyID: familyID, err: err}
		}()
		return
	}

	clients := make(familyClients)
	h.clients[c.familyID] = clients
	metrics.HubActiveFamilies.Set(float64(len(h.clients)))
	h.addClient(clients, c)
}

func (h *Hub) addClient(clients familyClients, c joinCmd) {
	cw := newClientWriter(c.conn, h.clock)
	clients[c.conn] = cw
	metrics.HubConnectedClients.Inc()
	slog.Debug("Client joined", "family_id", c.familyID, "total_clients", len(clients))
	c.errCh <- nil
}

func (h *Hub) handleFirstJoinResult(c firstJoinResultCmd) {
	pending, exists := h.pendingJoin[c.familyID]
	if !exists {
		return
	}
	delete(h.pendingJoin, c.familyID)

	if c.err != nil {
		slog.Error("Failed to activate family channel", "family_id", c.familyID, "error", c.err)
		for _, p := range pending {
			p.conn.Close()
			p.errCh <- c.err
		}
		return
	}

	clients := make(familyClients)
	h.clients[c.familyID] = clients
	metrics.HubActiveFamilies.Set(float64(len(h.clients)))
	for _, p := range pending {
		h.addClient(clients, p)
	}
}

func (h *Hub) handleLeave(familyID string, conn *websocket.Conn) {
	clients, exists := h.clients[familyID]
	if !exists {
		return
	}

	cw, exists := clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(clients, conn)
	metrics.HubConnectedClients.Dec()

	if len(clients) == 0 {
		delete(h.clients, familyID)
		metrics.HubActiveFamilies.Set(float64(len(h.clients)))
		if h.onLastLeave != nil {
			h.onLastLeave(familyID)
		}
		slog.Info("Last client left family channel", "family_id", familyID)
	} else {
		slog.Debug("Client left", "family_id", familyID, "remaining_clients", len(clients))
	}
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	clients, exists := h.clients[c.familyID]
	if !exists {
		return
	}
	metrics.HubBroadcastsTotal.Inc()

	var slow []*websocket.Conn
	for conn, cw := range clients {
		select {
		case cw.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow client", "family_id", c.familyID)
		metrics.HubSlowClientsEvicted.Inc()
		h.handleLeave(c.familyID, conn)
	}
}

func (h *Hub) handleStop() {
	for familyID, clients := range h.clients {
		for _, cw := range clients {
			cw.stopGraceful("server shutting down")
		}
		delete(h.clients, familyID)
		metrics.HubConnectedClients.Sub(float64(len(clients)))
		if h.onLastLeave != nil {
			h.onLastLeave(familyID)
		}
	}
	metrics.HubActiveFamilies.Set(0)

	for familyID, pending := range h.pendingJoin {
		for _, p := range pending {
			p.conn.Close()
			p.errCh <- fmt.Errorf("hub stopped")
		}
		delete(h.pendingJoin, familyID)
	}
}
