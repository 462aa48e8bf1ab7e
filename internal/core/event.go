package core

import "github.com/vovakirdan/pinchat/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventHistory delivers the room log, kind and roster to a client that just joined.
	EventHistory EventKind = iota
	// EventRoster carries the updated roster of a room.
	EventRoster
	// EventMessage notifies clients about a new message in their room.
	EventMessage
	// EventRoomClosed tells members their room was deleted.
	EventRoomClosed
	// EventJoinError reports a failed join to the initiating client only.
	EventJoinError
)

func (k EventKind) String() string {
	switch k {
	case EventHistory:
		return "chat_history"
	case EventRoster:
		return "update_roster"
	case EventMessage:
		return "new_message"
	case EventRoomClosed:
		return "room_closed"
	case EventJoinError:
		return "join_error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	RoomID   string
	RoomKind store.RoomKind
	Roster   []string
	Message  *store.Message
	History  []store.Message // For EventHistory
	Error    *Error
}
