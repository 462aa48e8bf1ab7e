package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a room, message or admin does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate entry")
	// ErrUnavailable is returned by every operation of a store that could not be opened.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// RoomKind defines what a room accepts.
type RoomKind string

const (
	RoomKindText       RoomKind = "Text"
	RoomKindMultimedia RoomKind = "Multimedia"
)

// Valid reports whether k is a known room kind.
func (k RoomKind) Valid() bool {
	return k == RoomKindText || k == RoomKindMultimedia
}

// MessageKind classifies a message in a room log.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

// Room represents a chat room together with its live roster.
// Messages are only populated by callers that load them explicitly.
type Room struct {
	ID                 string
	Pin                string
	Kind               RoomKind
	ConnectedNicknames []string
	Messages           []Message
	CreatedAt          time.Time
}

// HasNickname reports whether nickname is on the roster (exact match).
func (r *Room) HasNickname(nickname string) bool {
	for _, n := range r.ConnectedNicknames {
		if n == nickname {
			return true
		}
	}
	return false
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	RoomID    string
	Author    string
	Kind      MessageKind
	Body      string
	FileURL   string
	FileName  string
	CreatedAt time.Time
}

// Admin is an account allowed to manage rooms.
type Admin struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// RoomStore handles room and roster persistence.
type RoomStore interface {
	// CreateRoom inserts a room. Returns ErrDuplicate if the id is taken.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoom retrieves a room and its roster by id.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// GetRoomByPin retrieves the oldest room with the given pin.
	GetRoomByPin(ctx context.Context, pin string) (*Room, error)

	// PinInUse reports whether any room currently uses pin.
	PinInUse(ctx context.Context, pin string) (bool, error)

	// ListRooms lists all rooms with rosters, oldest first, without messages.
	ListRooms(ctx context.Context) ([]*Room, error)

	// DeleteRoom removes a room, its roster and its messages.
	DeleteRoom(ctx context.Context, id string) error

	// AddConnected appends nickname to the room roster.
	// Returns ErrDuplicate if the nickname is already present and ErrNotFound if the room is gone.
	AddConnected(ctx context.Context, roomID, nickname string) error

	// RemoveConnected removes nickname from the room roster. Missing entries are ignored.
	RemoveConnected(ctx context.Context, roomID, nickname string) error

	// ResetRosters clears every roster. Used at startup since sessions live in memory.
	ResetRosters(ctx context.Context) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists msg at the end of the room log and sets its ID.
	// Returns ErrNotFound if the room is gone; nothing is written then.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the full room log in append order.
	ListMessages(ctx context.Context, roomID string) ([]Message, error)
}

// AdminStore handles admin accounts.
type AdminStore interface {
	// GetAdmin retrieves an admin by username.
	GetAdmin(ctx context.Context, username string) (*Admin, error)

	// SaveAdmin creates or replaces an admin.
	SaveAdmin(ctx context.Context, admin *Admin) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore
	AdminStore

	// Close closes the underlying connection.
	Close() error
}
