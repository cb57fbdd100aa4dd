package api

import (
	"encoding/json"

	"github.com/umlhub/umlhub/internal/slogging"
)

// Event names on the realtime channel. The set mirrors what the web client
// already speaks; every frame is a JSON object with an "event" discriminator.
const (
	// Client -> server
	EventJoin   = "diagram:join"
	EventLeave  = "diagram:leave"
	EventChange = "diagram:change"
	EventPing   = "diagram:ping"

	// Server -> client
	EventJoined     = "diagram:joined"
	EventPeerJoined = "diagram:user:joined"
	EventPeerLeft   = "diagram:user:left"
	EventPresence   = "diagram:presence"
	EventChanged    = "diagram:changed"
	EventPong       = "diagram:pong"
)

// JoinRequest asks to enter a diagram room. UserID and Name are only
// honored for connections without a verified identity.
type JoinRequest struct {
	Event     string `json:"event"`
	DiagramID string `json:"diagramId"`
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name,omitempty"`
}

// LeaveRequest asks to leave a diagram room
type LeaveRequest struct {
	Event     string `json:"event"`
	DiagramID string `json:"diagramId"`
}

// ChangeRequest carries a model edit. Exactly one of IncrementalJSON or
// ModelJSON is expected; incremental is preferred when both are present.
// ClientVersion is informational only and never used for conflict detection.
type ChangeRequest struct {
	Event           string          `json:"event"`
	DiagramID       string          `json:"diagramId"`
	IncrementalJSON json.RawMessage `json:"incrementalJson,omitempty"`
	ModelJSON       json.RawMessage `json:"modelJson,omitempty"`
	ClientVersion   uint64          `json:"clientVersion,omitempty"`
	Source          string          `json:"source,omitempty"`
}

// PingRequest is a liveness signal relayed to room peers
type PingRequest struct {
	Event     string `json:"event"`
	DiagramID string `json:"diagramId"`
}

// JoinedMessage is sent to the joining connection only
type JoinedMessage struct {
	Event     string `json:"event"`
	DiagramID string `json:"diagramId"`
	Peers     int    `json:"peers"`
	Version   uint64 `json:"version"`
}

// PeerJoinedMessage is sent to the rest of the room when someone joins
type PeerJoinedMessage struct {
	Event  string `json:"event"`
	UserID string `json:"userId,omitempty"`
	Peers  int    `json:"peers"`
}

// PeerLeftMessage is sent to the remaining room members when someone leaves
type PeerLeftMessage struct {
	Event  string `json:"event"`
	UserID string `json:"userId,omitempty"`
	Peers  int    `json:"peers"`
}

// PresenceMessage carries the full presence roster of a room
type PresenceMessage struct {
	Event string          `json:"event"`
	Peers []PresenceEntry `json:"peers"`
}

// ChangedMessage relays an accepted change, stamped with the new room version
type ChangedMessage struct {
	Event           string          `json:"event"`
	DiagramID       string          `json:"diagramId"`
	ServerVersion   uint64          `json:"serverVersion"`
	IncrementalJSON json.RawMessage `json:"incrementalJson,omitempty"`
	ModelJSON       json.RawMessage `json:"modelJson,omitempty"`
	Source          string          `json:"source,omitempty"`
}

// PongMessage answers a peer's ping with a server timestamp (unix millis)
type PongMessage struct {
	Event string `json:"event"`
	At    int64  `json:"at"`
}

// mustMarshal serializes an outbound message. All outbound types marshal
// without error; a failure here is a programming bug, logged and skipped.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slogging.Get().Error("Failed to marshal websocket message: %v", err)
		return nil
	}
	return data
}
