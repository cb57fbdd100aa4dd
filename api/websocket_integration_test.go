package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umlhub/umlhub/internal/config"
)

// dialWS opens a live websocket against the hub through a real HTTP server
func dialWS(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestWebSocketEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default().WebSocket
	cfg.AllowAllOrigins = true
	hub := NewWebSocketHub(cfg)

	router := gin.New()
	router.GET("/ws", hub.HandleWS)
	server := httptest.NewServer(router)
	defer server.Close()

	alice := dialWS(t, server.URL)
	writeFrame(t, alice, JoinRequest{Event: EventJoin, DiagramID: "d1", UserID: "alice", Name: "Alice"})

	joined := readFrame(t, alice)
	assert.Equal(t, EventJoined, joined["event"])
	assert.Equal(t, float64(1), joined["peers"])
	presence := readFrame(t, alice)
	assert.Equal(t, EventPresence, presence["event"])

	bob := dialWS(t, server.URL)
	writeFrame(t, bob, JoinRequest{Event: EventJoin, DiagramID: "d1", UserID: "bob", Name: "Bob"})

	bobJoined := readFrame(t, bob)
	assert.Equal(t, EventJoined, bobJoined["event"])
	assert.Equal(t, float64(2), bobJoined["peers"])
	readFrame(t, bob) // presence

	aliceSees := readFrame(t, alice)
	assert.Equal(t, EventPeerJoined, aliceSees["event"])
	readFrame(t, alice) // presence

	// A change from alice reaches bob with version 1, and never echoes back
	writeFrame(t, alice, ChangeRequest{
		Event:           EventChange,
		DiagramID:       "d1",
		IncrementalJSON: json.RawMessage(`{"op":"move","key":1}`),
	})
	changed := readFrame(t, bob)
	assert.Equal(t, EventChanged, changed["event"])
	assert.Equal(t, float64(1), changed["serverVersion"])

	// Bob pings; alice gets the pong
	writeFrame(t, bob, PingRequest{Event: EventPing, DiagramID: "d1"})
	pong := readFrame(t, alice)
	assert.Equal(t, EventPong, pong["event"])

	// Closing bob's transport tears his session down and notifies alice
	require.NoError(t, bob.Close())
	left := readFrame(t, alice)
	assert.Equal(t, EventPeerLeft, left["event"])
	roster := readFrame(t, alice)
	assert.Equal(t, EventPresence, roster["event"])
	assert.Len(t, roster["peers"].([]any), 1)

	require.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
