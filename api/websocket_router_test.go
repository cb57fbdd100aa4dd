package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicHandler struct{}

func (h *panicHandler) Event() string { return "test:panic" }
func (h *panicHandler) HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	panic("handler exploded")
}

func TestRouterDropsMalformedAndUnknownFrames(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, "conn-a")
	router := NewMessageRouter()

	router.Route(hub, client, []byte(`not json`))
	router.Route(hub, client, []byte(`{"event":"diagram:selfdestruct"}`))
	router.Route(hub, client, []byte(`{}`))

	assert.Empty(t, drain(t, client))
	assert.Equal(t, 0, hub.RoomCount())
}

func TestRouterRecoversFromHandlerPanic(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, "conn-a")
	router := NewMessageRouter()
	router.RegisterHandler(&panicHandler{})

	assert.NotPanics(t, func() {
		router.Route(hub, client, []byte(`{"event":"test:panic"}`))
	})
}

func TestRouterDispatchesJoinChangeLeave(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")
	router := hub.router

	router.Route(hub, alice, []byte(`{"event":"diagram:join","diagramId":"d1","userId":"alice","name":"Alice"}`))
	router.Route(hub, bob, []byte(`{"event":"diagram:join","diagramId":"d1","userId":"bob","name":"Bob"}`))
	drain(t, alice)
	drain(t, bob)

	router.Route(hub, alice, []byte(`{"event":"diagram:change","diagramId":"d1","incrementalJson":{"op":"add"}}`))
	frames := drain(t, bob)
	require.Len(t, frames, 1)
	assert.Equal(t, EventChanged, frames[0]["event"])
	assert.Equal(t, float64(1), frames[0]["serverVersion"])

	router.Route(hub, bob, []byte(`{"event":"diagram:leave","diagramId":"d1"}`))
	departure := drain(t, alice)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(departure))
}

func TestJoinHandlerIdentityPrecedence(t *testing.T) {
	t.Run("verified identity wins over frame fields", func(t *testing.T) {
		hub := testHub()
		client := newTestClient(hub, "conn-a")
		client.UserID = "verified-user"
		client.DisplayName = "Verified Name"

		hub.router.Route(hub, client, []byte(`{"event":"diagram:join","diagramId":"d1","userId":"spoofed","name":"Spoofed"}`))

		roster := hub.PresenceSnapshot("d1")
		require.Len(t, roster, 1)
		assert.Equal(t, "verified-user", roster[0].ID)
		assert.Equal(t, "Verified Name", roster[0].Name)
	})

	t.Run("anonymous connections may name themselves", func(t *testing.T) {
		hub := testHub()
		client := newTestClient(hub, "conn-a")

		hub.router.Route(hub, client, []byte(`{"event":"diagram:join","diagramId":"d1","userId":"guest-7","name":"Guest"}`))

		roster := hub.PresenceSnapshot("d1")
		require.Len(t, roster, 1)
		assert.Equal(t, "guest-7", roster[0].ID)
		assert.Equal(t, "Guest", roster[0].Name)
	})

	t.Run("falls back to connection id and generic label", func(t *testing.T) {
		hub := testHub()
		client := newTestClient(hub, "conn-a")

		hub.router.Route(hub, client, []byte(`{"event":"diagram:join","diagramId":"d1"}`))

		roster := hub.PresenceSnapshot("d1")
		require.Len(t, roster, 1)
		assert.Equal(t, "conn-a", roster[0].ID)
		assert.Equal(t, "Anonymous", roster[0].Name)
	})
}
