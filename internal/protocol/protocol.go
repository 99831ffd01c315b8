// Package protocol defines the chat-rooms wire format: a JSON envelope with
// an event tag and a data object, plus the typed payloads for every event the
// client sends or understands.
package protocol

import "encoding/json"

// EventType identifies the kind of event carried by a frame.
type EventType string

// Client → server events.
const (
	CreateRoom    EventType = "create_room"
	JoinRoom      EventType = "join_room"
	LeaveRoom     EventType = "leave_room"
	SendMessage   EventType = "send_message"
	ReconnectRoom EventType = "reconnect_room"
)

// Server → client events.
const (
	RoomCreated     EventType = "room_created"
	RoomJoined      EventType = "room_joined"
	RoomLeft        EventType = "room_left"
	RoomReconnected EventType = "room_reconnected"
	InvalidToken    EventType = "invalid_token"
	MessageReceived EventType = "message_received"
	Error           EventType = "error"
)

// Envelope is the top-level shape of every frame.
type Envelope struct {
	EventType EventType       `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// --- outbound payloads ---

// RoomRequest is the payload of create_room and join_room.
type RoomRequest struct {
	RoomName string `json:"roomName"`
	Username string `json:"username"`
}

// LeaveRequest is the payload of leave_room.
type LeaveRequest struct {
	RoomName string `json:"roomName"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// MessageRequest is the payload of send_message.
type MessageRequest struct {
	RoomName string `json:"roomName"`
	Username string `json:"username"`
	Body     string `json:"body"`
}

// ReconnectRequest is the payload of reconnect_room.
type ReconnectRequest struct {
	Token string `json:"token"`
}

// --- inbound events ---

// Inbound is a decoded server event.
type Inbound interface {
	Type() EventType
}

// RoomCreatedEvent acknowledges create_room. The server follows it with
// room_joined, which is what actually changes membership.
type RoomCreatedEvent struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
}

// RoomJoinedEvent confirms membership and carries the resume token.
type RoomJoinedEvent struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
}

// RoomLeftEvent confirms that the client left its room.
type RoomLeftEvent struct {
	Token    string `json:"token,omitempty"`
	RoomName string `json:"roomName,omitempty"`
}

// RoomReconnectedEvent confirms a resume. Username is authoritative.
type RoomReconnectedEvent struct {
	Token    string `json:"token,omitempty"`
	RoomName string `json:"roomName"`
	Username string `json:"username"`
}

// InvalidTokenEvent rejects a stale or unknown resume token.
type InvalidTokenEvent struct {
	Token string `json:"token,omitempty"`
}

// MessageReceivedEvent is a chat message broadcast to the room. ID is
// optional; the server does not always assign one.
type MessageReceivedEvent struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Body     string `json:"body"`
}

// ErrorEvent is a server-side error report.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnknownEvent is any tag this client does not understand. It is decoded
// successfully so that newer servers can add events without breaking us.
type UnknownEvent struct {
	Tag EventType
}

func (RoomCreatedEvent) Type() EventType     { return RoomCreated }
func (RoomJoinedEvent) Type() EventType      { return RoomJoined }
func (RoomLeftEvent) Type() EventType        { return RoomLeft }
func (RoomReconnectedEvent) Type() EventType { return RoomReconnected }
func (InvalidTokenEvent) Type() EventType    { return InvalidToken }
func (MessageReceivedEvent) Type() EventType { return MessageReceived }
func (ErrorEvent) Type() EventType           { return Error }
func (e UnknownEvent) Type() EventType       { return e.Tag }
