package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin  = "join_room"
	InboundTypeSend  = "send_message"
	InboundTypeLeave = "leave_room"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventConnected   = "connected"
	EventChatHistory = "chat_history"
	EventRoster      = "update_roster"
	EventNewMessage  = "new_message"
	EventRoomClosed  = "room_closed"
	EventJoinError   = "join_error"
)

// JoinData requests to join the room behind a PIN.
type JoinData struct {
	Pin      string `json:"pin"`
	Nickname string `json:"nickname"`
}

// SendData is a chat message from the client.
type SendData struct {
	Body string `json:"body"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is a room message as seen by clients and admins.
type Message struct {
	ID        int64  `json:"id,omitempty"`
	Author    string `json:"nickname"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// EventConnectedData hands the client its connection id, needed for uploads.
type EventConnectedData struct {
	ConnectionID string `json:"connection_id"`
}

// EventChatHistoryData is sent privately to a client that joined.
type EventChatHistoryData struct {
	RoomID   string    `json:"room_id"`
	History  []Message `json:"history"`
	RoomKind string    `json:"room_kind"`
	Roster   []string  `json:"roster"`
}

// EventRosterData carries the current roster of a room.
type EventRosterData struct {
	RoomID string   `json:"room_id"`
	Roster []string `json:"roster"`
}

// EventNewMessageData carries a message appended to a room.
type EventNewMessageData struct {
	RoomID  string  `json:"room_id"`
	Message Message `json:"message"`
}

// EventRoomClosedData tells members their room was deleted.
type EventRoomClosedData struct {
	RoomID string `json:"room_id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
