package livefeed

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Transport is a single live connection to the feed endpoint. ReadMessage
// blocks until a frame arrives or the connection is lost.
type Transport interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens a transport for a family. Implementations must respect ctx
// cancellation during the handshake.
type Dialer interface {
	Dial(ctx context.Context, familyID string) (Transport, error)
}

// WebSocketDialer dials the family feed endpoint over WebSocket.
type WebSocketDialer struct {
	// BaseURL is the server root, e.g. "ws://localhost:8080".
	BaseURL string
	// Dialer defaults to websocket.DefaultDialer when nil.
	Dialer *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, familyID string) (Transport, error) {
	wsd := d.Dialer
	if wsd == nil {
		wsd = websocket.DefaultDialer
	}

	endpoint := d.BaseURL + "/ws/family/" + url.PathEscape(familyID)
	conn, _, err := wsd.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return data, nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
