package api

import (
	"fmt"
	"sync"
	"time"
)

// PresenceEntry is one member of a room's live roster
type PresenceEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Room is the ephemeral collaboration session for one diagram. It owns the
// presence roster, the membership set and the change version counter for
// that diagram. A room exists only while at least one connection references
// it; the hub garbage-collects it when the last member leaves.
//
// All fields below mu are guarded by mu. Operations on different rooms
// never contend; within one room every mutation (join, leave, relay) is
// serialized by mu, which is what keeps presence snapshots and version
// stamps consistent.
type Room struct {
	DiagramID string

	mu        sync.Mutex
	closed    bool
	version   uint64
	updatedAt time.Time
	clients   map[string]*WebSocketClient
	presence  map[string]PresenceEntry
}

func newRoom(diagramID string) *Room {
	return &Room{
		DiagramID: diagramID,
		updatedAt: time.Now().UTC(),
		clients:   make(map[string]*WebSocketClient),
		presence:  make(map[string]PresenceEntry),
	}
}

// bump increments the room version by exactly one and returns the new value.
// A fresh room starts at 0, so the first accepted change is stamped 1.
// Callers must hold mu.
func (r *Room) bump() uint64 {
	r.version++
	r.updatedAt = time.Now().UTC()
	return r.version
}

// presenceSnapshot copies the current roster. Callers must hold mu. The
// order is unspecified; clients render it as an unordered set.
func (r *Room) presenceSnapshot() []PresenceEntry {
	entries := make([]PresenceEntry, 0, len(r.presence))
	for _, entry := range r.presence {
		entries = append(entries, entry)
	}
	return entries
}

// broadcast delivers a frame to every member except the connection named by
// exceptConnID (empty string excludes nobody). Callers must hold mu, so
// deliveries from competing mutations of the same room cannot interleave.
func (r *Room) broadcast(message []byte, exceptConnID string) {
	if message == nil {
		return
	}
	for connID, client := range r.clients {
		if connID == exceptConnID {
			continue
		}
		client.trySend(message)
	}
}

// ColorForID derives a stable presence color from an identity string. It is
// a pure function: the same identity always maps to the same hue. Collisions
// are acceptable; the value is a rendering aid, nothing more.
func ColorForID(id string) string {
	h := 0
	for _, r := range id {
		h = (h*31 + int(r)) % 360
	}
	return fmt.Sprintf("hsl(%d 70%% 50%%)", h)
}
