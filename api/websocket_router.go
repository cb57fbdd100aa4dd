package api

import (
	"encoding/json"
	"runtime/debug"

	"github.com/umlhub/umlhub/internal/slogging"
)

// MessageHandler defines the interface for handling realtime frames
type MessageHandler interface {
	Event() string
	HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte)
}

// MessageRouter dispatches inbound frames to the handler registered for
// their event. Malformed or unknown frames are dropped without an error
// reply; the channel is fire-and-forget.
type MessageRouter struct {
	handlers map[string]MessageHandler
}

// NewMessageRouter creates a router with the default handlers registered
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{
		handlers: make(map[string]MessageHandler),
	}
	router.RegisterHandler(&JoinHandler{})
	router.RegisterHandler(&LeaveHandler{})
	router.RegisterHandler(&ChangeHandler{})
	router.RegisterHandler(&PingHandler{})
	return router
}

// RegisterHandler registers a handler for its event
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.Event()] = handler
}

// Route parses the event discriminator and dispatches the frame
func (r *MessageRouter) Route(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("PANIC in websocket route - Conn: %s, User: %s, Error: %v, Stack: %s",
				client.ID, client.UserID, rec, debug.Stack())
		}
	}()

	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		slogging.Get().Debug("[ws] dropping unparseable frame from conn %s: %v", client.ID, err)
		return
	}

	handler, ok := r.handlers[envelope.Event]
	if !ok {
		slogging.Get().Debug("[ws] dropping frame with unknown event %q from conn %s",
			slogging.SanitizeLogMessage(envelope.Event), client.ID)
		return
	}

	handler.HandleMessage(hub, client, message)
}

// JoinHandler handles diagram:join frames
type JoinHandler struct{}

// Event returns the event this handler responds to
func (h *JoinHandler) Event() string {
	return EventJoin
}

// HandleMessage enters the connection into the requested room. The verified
// identity from the transport wins; the frame's userId and name only apply
// to anonymous connections, falling back to the connection id and a generic
// label.
func (h *JoinHandler) HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	var req JoinRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return
	}

	identity := client.UserID
	if identity == "" {
		identity = req.UserID
	}
	if identity == "" {
		identity = client.ID
	}
	name := client.DisplayName
	if name == "" {
		name = req.Name
	}
	if name == "" {
		name = "Anonymous"
	}

	hub.Join(client, req.DiagramID, identity, name)
}

// LeaveHandler handles diagram:leave frames
type LeaveHandler struct{}

// Event returns the event this handler responds to
func (h *LeaveHandler) Event() string {
	return EventLeave
}

// HandleMessage removes the connection from the named room
func (h *LeaveHandler) HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	var req LeaveRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return
	}
	if req.DiagramID == "" {
		return
	}
	hub.Leave(client, req.DiagramID)
}

// ChangeHandler handles diagram:change frames
type ChangeHandler struct{}

// Event returns the event this handler responds to
func (h *ChangeHandler) Event() string {
	return EventChange
}

// HandleMessage relays a change event to room peers
func (h *ChangeHandler) HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	var req ChangeRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return
	}
	hub.Relay(client, req)
}

// PingHandler handles diagram:ping frames
type PingHandler struct{}

// Event returns the event this handler responds to
func (h *PingHandler) Event() string {
	return EventPing
}

// HandleMessage relays a liveness signal to room peers
func (h *PingHandler) HandleMessage(hub *WebSocketHub, client *WebSocketClient, message []byte) {
	var req PingRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return
	}
	hub.Ping(client, req.DiagramID)
}
