package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/umlhub/umlhub/auth"
	"github.com/umlhub/umlhub/internal/config"
	"github.com/umlhub/umlhub/internal/slogging"
)

// WebSocketHub is the realtime collaboration engine. It tracks every live
// connection, the rooms they belong to, and fans change events out to room
// peers. All state is in-memory and dies with the process; the durable
// diagram model and its version history live behind the diagram store.
type WebSocketHub struct {
	cfg    config.WebSocketConfig
	router *MessageRouter

	// mu guards the three maps. Per-room state is guarded by each room's
	// own mutex, so load on one diagram never contends with another.
	mu          sync.RWMutex
	rooms       map[string]*Room
	connections map[string]*WebSocketClient
	// Reverse index connection -> rooms. A connection is a member of at
	// most one room today; modeled as a set so multi-room membership stays
	// a safe extension.
	connRooms map[string]map[string]struct{}
}

// WebSocketClient represents one live transport-level session
type WebSocketClient struct {
	Hub  *WebSocketHub
	Conn *websocket.Conn
	// ID is the opaque connection identifier assigned at upgrade time
	ID string
	// UserID is the verified identity, empty for anonymous viewers
	UserID string
	// DisplayName is the verified display name, may be empty
	DisplayName string
	// Send is the buffered channel of outbound frames
	Send chan []byte
}

// NewWebSocketHub creates a new hub
func NewWebSocketHub(cfg config.WebSocketConfig) *WebSocketHub {
	hub := &WebSocketHub{
		cfg:         cfg,
		rooms:       make(map[string]*Room),
		connections: make(map[string]*WebSocketClient),
		connRooms:   make(map[string]map[string]struct{}),
	}
	hub.router = NewMessageRouter()
	return hub
}

// RegisterConnection adds a connection to the registry. The connection has
// no room until it joins one.
func (h *WebSocketHub) RegisterConnection(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[client.ID] = client
}

// ConnectionCount returns the number of live connections
func (h *WebSocketHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomCount returns the number of live rooms
func (h *WebSocketHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomVersion returns the current version of a room and whether it exists.
// Exposed for the join response and for observability; the counter itself
// only advances through Relay.
func (h *WebSocketHub) RoomVersion(diagramID string) (uint64, bool) {
	h.mu.RLock()
	room, ok := h.rooms[diagramID]
	h.mu.RUnlock()
	if !ok {
		return 0, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.version, true
}

// PresenceSnapshot returns the current roster of a room, empty if the room
// does not exist.
func (h *WebSocketHub) PresenceSnapshot(diagramID string) []PresenceEntry {
	h.mu.RLock()
	room, ok := h.rooms[diagramID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.presenceSnapshot()
}

// Join enters a connection into a diagram room, registering its presence and
// notifying peers. A connection belongs to at most one room; joining a new
// room implicitly leaves the previous one. Joining with an empty diagram id
// is a silent no-op.
func (h *WebSocketHub) Join(client *WebSocketClient, diagramID, identity, name string) {
	if diagramID == "" {
		return
	}

	// Implicit leave-then-join when switching rooms
	for _, current := range h.roomsOf(client.ID) {
		if current != diagramID {
			h.Leave(client, current)
		}
	}

	entry := PresenceEntry{
		ID:    identity,
		Name:  name,
		Color: ColorForID(identity),
	}

	for {
		room := h.getOrCreateRoom(diagramID)
		room.mu.Lock()
		if room.closed {
			// Lost a race with garbage collection; a fresh room will be
			// created on the next attempt.
			room.mu.Unlock()
			continue
		}

		room.clients[client.ID] = client
		room.presence[client.ID] = entry
		peers := len(room.clients)
		version := room.version

		client.trySend(mustMarshal(JoinedMessage{
			Event:     EventJoined,
			DiagramID: diagramID,
			Peers:     peers,
			Version:   version,
		}))
		room.broadcast(mustMarshal(PeerJoinedMessage{
			Event:  EventPeerJoined,
			UserID: client.UserID,
			Peers:  peers,
		}), client.ID)
		room.broadcast(mustMarshal(PresenceMessage{
			Event: EventPresence,
			Peers: room.presenceSnapshot(),
		}), "")

		room.mu.Unlock()
		break
	}

	h.mu.Lock()
	if _, ok := h.connRooms[client.ID]; !ok {
		h.connRooms[client.ID] = make(map[string]struct{})
	}
	h.connRooms[client.ID][diagramID] = struct{}{}
	h.mu.Unlock()

	slogging.Get().Debug("[ws] conn %s joined diagram %s as %s", client.ID, diagramID, entry.ID)
}

// Leave removes a connection from a room and notifies the remaining members.
// Leaving a room the connection never joined is a no-op.
func (h *WebSocketHub) Leave(client *WebSocketClient, diagramID string) {
	h.mu.Lock()
	if set, ok := h.connRooms[client.ID]; ok {
		delete(set, diagramID)
		if len(set) == 0 {
			delete(h.connRooms, client.ID)
		}
	}
	room, ok := h.rooms[diagramID]
	h.mu.Unlock()
	if !ok {
		return
	}

	h.removeFromRoom(room, client)
}

// Disconnect is the teardown hook for transport closure. It is idempotent
// and safe to call for connections that never joined a room, or racing with
// an explicit leave: the second invocation finds nothing to clean up and
// emits no peer notifications.
func (h *WebSocketHub) Disconnect(client *WebSocketClient) {
	h.mu.Lock()
	delete(h.connections, client.ID)
	memberOf := h.connRooms[client.ID]
	delete(h.connRooms, client.ID)
	roomsLeft := make([]*Room, 0, len(memberOf))
	for diagramID := range memberOf {
		if room, ok := h.rooms[diagramID]; ok {
			roomsLeft = append(roomsLeft, room)
		}
	}
	h.mu.Unlock()

	for _, room := range roomsLeft {
		h.removeFromRoom(room, client)
	}
}

// removeFromRoom deletes membership and presence for a connection, notifies
// the remaining members, and garbage-collects the room if it emptied.
func (h *WebSocketHub) removeFromRoom(room *Room, client *WebSocketClient) {
	room.mu.Lock()
	if _, member := room.clients[client.ID]; !member {
		room.mu.Unlock()
		return
	}
	delete(room.clients, client.ID)
	delete(room.presence, client.ID)
	peers := len(room.clients)

	room.broadcast(mustMarshal(PeerLeftMessage{
		Event:  EventPeerLeft,
		UserID: client.UserID,
		Peers:  peers,
	}), "")
	room.broadcast(mustMarshal(PresenceMessage{
		Event: EventPresence,
		Peers: room.presenceSnapshot(),
	}), "")
	empty := peers == 0
	room.mu.Unlock()

	if empty {
		h.collectRoom(room)
	}

	slogging.Get().Debug("[ws] conn %s left diagram %s", client.ID, room.DiagramID)
}

// collectRoom removes an empty room from the hub. The closed flag makes a
// racing Join retry against a fresh room instead of resurrecting this one.
func (h *WebSocketHub) collectRoom(room *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room.mu.Lock()
	defer room.mu.Unlock()
	if len(room.clients) > 0 || room.closed {
		return
	}
	room.closed = true
	delete(h.rooms, room.DiagramID)
}

// Relay validates a change event, stamps it with the next room version and
// delivers it to every room member except the sender. Events without a
// payload, for unknown rooms, or from non-members are dropped silently:
// the protocol is fire-and-forget.
func (h *WebSocketHub) Relay(client *WebSocketClient, req ChangeRequest) {
	if req.DiagramID == "" {
		return
	}
	if len(req.IncrementalJSON) == 0 && len(req.ModelJSON) == 0 {
		return
	}

	h.mu.RLock()
	room, ok := h.rooms[req.DiagramID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if _, member := room.clients[client.ID]; !member {
		return
	}

	msg := ChangedMessage{
		Event:         EventChanged,
		DiagramID:     req.DiagramID,
		ServerVersion: room.bump(),
		Source:        req.Source,
	}
	// Incremental patch preferred when both are present
	if len(req.IncrementalJSON) > 0 {
		msg.IncrementalJSON = req.IncrementalJSON
	} else {
		msg.ModelJSON = req.ModelJSON
	}

	room.broadcast(mustMarshal(msg), client.ID)
}

// Ping relays a liveness signal to the sender's room peers. No state is
// mutated and no version is consumed.
func (h *WebSocketHub) Ping(client *WebSocketClient, diagramID string) {
	if diagramID == "" {
		return
	}
	h.mu.RLock()
	room, ok := h.rooms[diagramID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.broadcast(mustMarshal(PongMessage{
		Event: EventPong,
		At:    time.Now().UTC().UnixMilli(),
	}), client.ID)
}

// roomsOf returns the rooms a connection currently belongs to
func (h *WebSocketHub) roomsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.connRooms[connID]))
	for diagramID := range h.connRooms[connID] {
		out = append(out, diagramID)
	}
	return out
}

func (h *WebSocketHub) getOrCreateRoom(diagramID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[diagramID]; ok {
		return room
	}
	room := newRoom(diagramID)
	h.rooms[diagramID] = room
	return room
}

// trySend queues a frame for delivery without blocking the room lock. A
// client whose buffer is full misses the frame; there is no durable
// delivery on this channel.
func (c *WebSocketClient) trySend(message []byte) {
	if message == nil {
		return
	}
	select {
	case c.Send <- message:
	default:
		slogging.Get().Warn("[ws] send buffer full, dropping frame for conn %s", c.ID)
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and starts the
// read/write pumps. Identity, when present, was verified by the auth
// middleware upstream; anonymous share-link viewers connect without one.
func (h *WebSocketHub) HandleWS(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if h.cfg.AllowAllOrigins {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slogging.Get().WithContext(c).Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		Hub:         h,
		Conn:        conn,
		ID:          uuid.New().String(),
		UserID:      c.GetString(auth.ContextUserID),
		DisplayName: c.GetString(auth.ContextUserName),
		Send:        make(chan []byte, h.cfg.SendBufferSize),
	}

	h.RegisterConnection(client)

	go client.writePump()
	go client.readPump()
}

// readPump pumps frames from the connection into the hub. Transport
// liveness is enforced with read deadlines refreshed by pong frames; a dead
// transport surfaces as a read error and flows into Disconnect.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c)
		_ = c.Conn.Close()
	}()

	cfg := c.Hub.cfg
	c.Conn.SetReadLimit(cfg.ReadLimitBytes)
	_ = c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("[ws] read error on conn %s: %v", c.ID, err)
			}
			return
		}
		c.Hub.router.Route(c.Hub, c, message)
	}
}

// writePump pumps frames from the send channel to the connection and keeps
// the transport alive with periodic pings.
func (c *WebSocketClient) writePump() {
	cfg := c.Hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
