package hub

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections.
func testHub(t *testing.T, onFirst func(string) error, onLast func(string)) (*Hub, func(familyID string) *ws.Conn) {
	t.Helper()

	h := NewHub(onFirst, onLast, clockwork.NewRealClock())
	t.Cleanup(h.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		familyID := r.URL.Query().Get("family")
		if err := h.Join(familyID, conn); err != nil {
			return
		}

		// Read loop to detect disconnects.
		go func() {
			defer h.Leave(familyID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func(familyID string) *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?family=" + familyID
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return h, dial
}

func waitForClientCount(h *Hub, familyID string, expected int) bool {
	for i := 0; i < 100; i++ {
		if h.ClientCount(familyID) == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestHub_BroadcastReachesAllFamilyClients(t *testing.T) {
	h, dial := testHub(t, nil, nil)

	conn1 := dial("fam-1")
	conn2 := dial("fam-1")
	require.True(t, waitForClientCount(h, "fam-1", 2))

	frame := []byte(`{"type":"leaderboard_update","leaderboard":[]}`)
	h.Broadcast("fam-1", frame)

	for _, conn := range []*ws.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, frame, msg)
	}
}

func TestHub_BroadcastIsScopedToFamily(t *testing.T) {
	h, dial := testHub(t, nil, nil)

	connA := dial("fam-A")
	connB := dial("fam-B")
	require.True(t, waitForClientCount(h, "fam-A", 1))
	require.True(t, waitForClientCount(h, "fam-B", 1))

	h.Broadcast("fam-A", []byte(`{"type":"chore_completed"}`))

	connA.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := connA.ReadMessage()
	require.NoError(t, err)

	connB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = connB.ReadMessage()
	require.Error(t, err, "client of another family must not receive the frame")
}

func TestHub_FirstJoinAndLastLeaveCallbacks(t *testing.T) {
	var firsts, lasts atomic.Int32
	h, dial := testHub(t,
		func(string) error { firsts.Add(1); return nil },
		func(string) { lasts.Add(1) },
	)

	conn1 := dial("fam-1")
	conn2 := dial("fam-1")
	require.True(t, waitForClientCount(h, "fam-1", 2))
	assert.Equal(t, int32(1), firsts.Load(), "activation runs once per family")

	conn1.Close()
	require.True(t, waitForClientCount(h, "fam-1", 1))
	assert.Equal(t, int32(0), lasts.Load())

	conn2.Close()
	require.True(t, waitForClientCount(h, "fam-1", 0))
	assert.Eventually(t, func() bool { return lasts.Load() == 1 }, time.Second, time.Millisecond)
}

func TestHub_FirstJoinFailureRejectsQueuedClients(t *testing.T) {
	h, dial := testHub(t, func(string) error { return fmt.Errorf("upstream unavailable") }, nil)

	conn := dial("fam-1")

	// The server handler's Join fails and the connection is closed.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, h.ClientCount("fam-1"))
}

func TestHub_RejoinAfterFamilyEmptied(t *testing.T) {
	var firsts atomic.Int32
	h, dial := testHub(t, func(string) error { firsts.Add(1); return nil }, nil)

	conn := dial("fam-1")
	require.True(t, waitForClientCount(h, "fam-1", 1))
	conn.Close()
	require.True(t, waitForClientCount(h, "fam-1", 0))

	dial("fam-1")
	require.True(t, waitForClientCount(h, "fam-1", 1))
	assert.Equal(t, int32(2), firsts.Load(), "emptied family activates again on rejoin")
}
