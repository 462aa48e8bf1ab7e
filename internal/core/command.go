package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom binds the connection to the room behind a PIN.
	CommandJoinRoom CommandKind = iota
	// CommandSendMessage relays a text message to the current room.
	CommandSendMessage
	// CommandLeaveRoom unbinds the connection from its room.
	CommandLeaveRoom
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoinRoom:
		return "join_room"
	case CommandSendMessage:
		return "send_message"
	case CommandLeaveRoom:
		return "leave_room"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Pin      string
	Nickname string
	Body     string
}
