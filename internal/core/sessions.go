package core

import (
	"errors"
	"sync"
)

// ErrNotRegistered is returned by Bind for a connection that was never registered or already released.
var ErrNotRegistered = errors.New("connection not registered")

// ConnState is the lifecycle state of a connection.
type ConnState int

const (
	StateConnected ConnState = iota
	StateJoined
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Session binds a live connection to a nickname inside a room.
type Session struct {
	ConnID   string
	Nickname string
	RoomID   string
}

type sessionEntry struct {
	client  *Client
	session *Session
}

// SessionTable maps connection ids to their client and, once joined, their session.
// It is the single source of truth for who is where.
type SessionTable struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

// NewSessionTable returns an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{entries: make(map[string]*sessionEntry)}
}

// Register records a new connection. It reports false if the id is already taken.
func (t *SessionTable) Register(c *Client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[c.ID]; exists {
		return false
	}
	t.entries[c.ID] = &sessionEntry{client: c}
	return true
}

// Bind attaches a session to a registered connection.
func (t *SessionTable) Bind(connID, nickname, roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[connID]
	if !ok {
		return ErrNotRegistered
	}
	if e.session != nil {
		return ErrAlreadyInRoom
	}
	e.session = &Session{ConnID: connID, Nickname: nickname, RoomID: roomID}
	return nil
}

// Lookup returns the session bound to connID.
func (t *SessionTable) Lookup(connID string) (Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[connID]
	if !ok || e.session == nil {
		return Session{}, ErrNoSession
	}
	return *e.session, nil
}

// Unbind detaches and returns the session of connID. The connection stays registered.
func (t *SessionTable) Unbind(connID string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[connID]
	if !ok || e.session == nil {
		return Session{}, ErrNoSession
	}
	s := *e.session
	e.session = nil
	return s, nil
}

// unbindFrom detaches the session of connID only if it still points at roomID.
func (t *SessionTable) unbindFrom(connID, roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[connID]
	if !ok || e.session == nil || e.session.RoomID != roomID {
		return false
	}
	e.session = nil
	return true
}

// Release removes the connection. The first call for an id reports true and
// returns the session it carried, if any; later calls report false.
func (t *SessionTable) Release(connID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[connID]
	if !ok {
		return nil, false
	}
	delete(t.entries, connID)
	return e.session, true
}

// State reports the lifecycle state of connID.
func (t *SessionTable) State(connID string) ConnState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[connID]
	switch {
	case !ok:
		return StateDisconnected
	case e.session != nil:
		return StateJoined
	default:
		return StateConnected
	}
}

// InRoom lists the sessions bound to roomID.
func (t *SessionTable) InRoom(roomID string) []Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Session
	for _, e := range t.entries {
		if e.session != nil && e.session.RoomID == roomID {
			out = append(out, *e.session)
		}
	}
	return out
}

// Len returns the number of registered connections.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
