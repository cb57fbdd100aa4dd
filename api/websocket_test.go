package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umlhub/umlhub/internal/config"
)

func testHub() *WebSocketHub {
	return NewWebSocketHub(config.Default().WebSocket)
}

// newTestClient builds a client with a buffered send channel and no
// underlying connection; the pumps are never started in unit tests.
func newTestClient(hub *WebSocketHub, id string) *WebSocketClient {
	client := &WebSocketClient{
		Hub:  hub,
		ID:   id,
		Send: make(chan []byte, 64),
	}
	hub.RegisterConnection(client)
	return client
}

// drain empties a client's send buffer and returns the decoded frames
func drain(t *testing.T, client *WebSocketClient) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for {
		select {
		case raw := <-client.Send:
			var frame map[string]any
			require.NoError(t, json.Unmarshal(raw, &frame))
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func eventsOf(frames []map[string]any) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f["event"].(string))
	}
	return out
}

func TestJoinFirstMember(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")

	hub.Join(alice, "d1", "alice", "Alice")

	frames := drain(t, alice)
	require.Len(t, frames, 2)

	// The joiner receives the ack before the roster
	assert.Equal(t, EventJoined, frames[0]["event"])
	assert.Equal(t, "d1", frames[0]["diagramId"])
	assert.Equal(t, float64(1), frames[0]["peers"])
	assert.Equal(t, float64(0), frames[0]["version"])

	assert.Equal(t, EventPresence, frames[1]["event"])
	peers := frames[1]["peers"].([]any)
	require.Len(t, peers, 1)
	entry := peers[0].(map[string]any)
	assert.Equal(t, "alice", entry["id"])
	assert.Equal(t, "Alice", entry["name"])
	assert.Equal(t, ColorForID("alice"), entry["color"])

	assert.Equal(t, 1, hub.RoomCount())
}

func TestJoinNotifiesExistingMembers(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	drain(t, alice)

	hub.Join(bob, "d1", "bob", "Bob")

	bobFrames := drain(t, bob)
	require.Equal(t, []string{EventJoined, EventPresence}, eventsOf(bobFrames))
	assert.Equal(t, float64(2), bobFrames[0]["peers"])

	// The joiner's own presence is already in the roster it receives
	roster := bobFrames[1]["peers"].([]any)
	assert.Len(t, roster, 2)

	aliceFrames := drain(t, alice)
	require.Equal(t, []string{EventPeerJoined, EventPresence}, eventsOf(aliceFrames))
	assert.Equal(t, float64(2), aliceFrames[0]["peers"])
}

func TestJoinEmptyDiagramIDIsNoOp(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")

	hub.Join(alice, "", "alice", "Alice")

	assert.Empty(t, drain(t, alice))
	assert.Equal(t, 0, hub.RoomCount())
}

func TestJoinSwitchingRoomsLeavesPrevious(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Join(alice, "d2", "alice", "Alice")

	// Bob sees alice leave d1
	bobFrames := drain(t, bob)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(bobFrames))
	roster := bobFrames[1]["peers"].([]any)
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].(map[string]any)["id"])

	assert.Len(t, hub.PresenceSnapshot("d2"), 1)
	assert.Len(t, hub.PresenceSnapshot("d1"), 1)
}

func TestRejoinSameRoomRefreshesPresence(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(alice, "d1", "alice", "Alice Cooper")

	roster := hub.PresenceSnapshot("d1")
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice Cooper", roster[0].Name)
}

func TestRelayStampsConsecutiveVersions(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	for i := 0; i < 3; i++ {
		hub.Relay(alice, ChangeRequest{
			DiagramID:       "d1",
			IncrementalJSON: json.RawMessage(`{"op":"move"}`),
		})
	}

	// Sender is excluded from its own change notifications
	assert.Empty(t, drain(t, alice))

	frames := drain(t, bob)
	require.Len(t, frames, 3)
	for i, frame := range frames {
		assert.Equal(t, EventChanged, frame["event"])
		assert.Equal(t, float64(i+1), frame["serverVersion"])
	}

	version, ok := hub.RoomVersion("d1")
	require.True(t, ok)
	assert.Equal(t, uint64(3), version)
}

func TestRelayPrefersIncrementalOverFullModel(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Relay(alice, ChangeRequest{
		DiagramID:       "d1",
		IncrementalJSON: json.RawMessage(`{"op":"add"}`),
		ModelJSON:       json.RawMessage(`{"nodeDataArray":[]}`),
	})

	frames := drain(t, bob)
	require.Len(t, frames, 1)
	assert.NotNil(t, frames[0]["incrementalJson"])
	assert.Nil(t, frames[0]["modelJson"])
}

func TestRelayDropsInvalidRequests(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")
	outsider := newTestClient(hub, "conn-x")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	payload := json.RawMessage(`{"op":"move"}`)

	// No payload at all
	hub.Relay(alice, ChangeRequest{DiagramID: "d1"})
	// Unknown room
	hub.Relay(alice, ChangeRequest{DiagramID: "ghost", IncrementalJSON: payload})
	// Sender is not a member of the room
	hub.Relay(outsider, ChangeRequest{DiagramID: "d1", IncrementalJSON: payload})

	assert.Empty(t, drain(t, bob))
	version, ok := hub.RoomVersion("d1")
	require.True(t, ok)
	assert.Equal(t, uint64(0), version, "rejected events must not consume versions")
}

func TestRelayConcurrentSendersProduceDenseVersions(t *testing.T) {
	hub := testHub()

	const senders = 8
	const changesEach = 25

	receiver := &WebSocketClient{Hub: hub, ID: "receiver", Send: make(chan []byte, senders*changesEach+8)}
	hub.RegisterConnection(receiver)
	hub.Join(receiver, "d1", "receiver", "Receiver")

	clients := make([]*WebSocketClient, senders)
	for i := range clients {
		clients[i] = newTestClient(hub, fmt.Sprintf("conn-%d", i))
		hub.Join(clients[i], "d1", fmt.Sprintf("user-%d", i), "User")
	}
	drain(t, receiver)

	var wg sync.WaitGroup
	for _, client := range clients {
		wg.Add(1)
		go func(c *WebSocketClient) {
			defer wg.Done()
			for j := 0; j < changesEach; j++ {
				hub.Relay(c, ChangeRequest{
					DiagramID:       "d1",
					IncrementalJSON: json.RawMessage(`{"op":"move"}`),
				})
			}
		}(client)
	}
	wg.Wait()

	version, ok := hub.RoomVersion("d1")
	require.True(t, ok)
	assert.Equal(t, uint64(senders*changesEach), version)

	// The receiver observed every version exactly once, in order
	frames := drain(t, receiver)
	require.Len(t, frames, senders*changesEach)
	for i, frame := range frames {
		assert.Equal(t, float64(i+1), frame["serverVersion"])
	}
}

func TestPingRelayedToPeersOnly(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Ping(alice, "d1")

	assert.Empty(t, drain(t, alice))
	frames := drain(t, bob)
	require.Len(t, frames, 1)
	assert.Equal(t, EventPong, frames[0]["event"])
	assert.Greater(t, frames[0]["at"].(float64), float64(0))

	version, ok := hub.RoomVersion("d1")
	require.True(t, ok)
	assert.Equal(t, uint64(0), version, "pings must not consume versions")
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Leave(alice, "d1")

	// The leaver gets no farewell frames
	assert.Empty(t, drain(t, alice))

	frames := drain(t, bob)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(frames))
	assert.Equal(t, float64(1), frames[0]["peers"])
	roster := frames[1]["peers"].([]any)
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].(map[string]any)["id"])
}

func TestLeaveUnknownRoomIsNoOp(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")

	hub.Leave(alice, "never-joined")
	assert.Empty(t, drain(t, alice))
}

func TestDisconnectIsIdempotent(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Disconnect(alice)
	first := drain(t, bob)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(first))

	// The second teardown finds nothing and emits nothing
	hub.Disconnect(alice)
	assert.Empty(t, drain(t, bob))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestLeaveThenDisconnectEmitsOneDeparture(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	hub.Join(bob, "d1", "bob", "Bob")
	drain(t, alice)
	drain(t, bob)

	hub.Leave(alice, "d1")
	hub.Disconnect(alice)

	frames := drain(t, bob)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(frames))
}

func TestRoomCollectedWhenLastMemberLeaves(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")

	hub.Join(alice, "d1", "alice", "Alice")
	// A sole member's change reaches nobody but still advances the counter
	hub.Relay(alice, ChangeRequest{DiagramID: "d1", IncrementalJSON: json.RawMessage(`{}`)})
	version, ok := hub.RoomVersion("d1")
	require.True(t, ok)
	require.Equal(t, uint64(1), version)

	hub.Leave(alice, "d1")
	assert.Equal(t, 0, hub.RoomCount())
	_, ok = hub.RoomVersion("d1")
	assert.False(t, ok)

	// A new session for the same diagram starts from a fresh counter
	bob := newTestClient(hub, "conn-b")
	hub.Join(bob, "d1", "bob", "Bob")
	version, ok = hub.RoomVersion("d1")
	require.True(t, ok)
	assert.Equal(t, uint64(0), version)
}

// The canonical two-editor session: join, edit, edit, leave.
func TestCollaborativeSessionScenario(t *testing.T) {
	hub := testHub()
	alice := newTestClient(hub, "conn-a")
	bob := newTestClient(hub, "conn-b")

	hub.Join(alice, "d1", "alice", "Alice")
	aliceJoin := drain(t, alice)
	require.Equal(t, []string{EventJoined, EventPresence}, eventsOf(aliceJoin))
	assert.Equal(t, float64(1), aliceJoin[0]["peers"])

	hub.Join(bob, "d1", "bob", "Bob")
	bobJoin := drain(t, bob)
	require.Equal(t, []string{EventJoined, EventPresence}, eventsOf(bobJoin))
	assert.Equal(t, float64(2), bobJoin[0]["peers"])
	aliceSees := drain(t, alice)
	require.Equal(t, []string{EventPeerJoined, EventPresence}, eventsOf(aliceSees))

	hub.Relay(alice, ChangeRequest{DiagramID: "d1", IncrementalJSON: json.RawMessage(`{"op":"add"}`)})
	bobChange := drain(t, bob)
	require.Len(t, bobChange, 1)
	assert.Equal(t, float64(1), bobChange[0]["serverVersion"])

	hub.Relay(bob, ChangeRequest{DiagramID: "d1", IncrementalJSON: json.RawMessage(`{"op":"move"}`)})
	aliceChange := drain(t, alice)
	require.Len(t, aliceChange, 1)
	assert.Equal(t, float64(2), aliceChange[0]["serverVersion"])

	hub.Disconnect(bob)
	departure := drain(t, alice)
	require.Equal(t, []string{EventPeerLeft, EventPresence}, eventsOf(departure))
	assert.Equal(t, float64(1), departure[0]["peers"])

	hub.Disconnect(alice)
	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestTrySendDropsWhenBufferFull(t *testing.T) {
	hub := testHub()
	client := &WebSocketClient{Hub: hub, ID: "tiny", Send: make(chan []byte, 1)}

	client.trySend([]byte(`{"event":"first"}`))
	// Does not block even though the buffer is full
	client.trySend([]byte(`{"event":"second"}`))

	assert.Len(t, client.Send, 1)
}
