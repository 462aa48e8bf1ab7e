// Package memory is an in-process store.Store used for tests and the "memory" driver.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vovakirdan/pinchat/internal/store"
)

type roomRecord struct {
	room     store.Room
	seq      int64
	roster   []string
	messages []store.Message
}

// Store keeps rooms, rosters, messages and admins in maps guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	rooms   map[string]*roomRecord
	admins  map[string]store.Admin
	roomSeq int64
	msgSeq  int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:  make(map[string]*roomRecord),
		admins: make(map[string]store.Admin),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (r *roomRecord) snapshot() *store.Room {
	room := r.room
	room.ConnectedNicknames = append([]string{}, r.roster...)
	room.Messages = nil
	return &room
}

// CreateRoom inserts a room.
func (s *Store) CreateRoom(_ context.Context, room *store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return fmt.Errorf("insert room %s: %w", room.ID, store.ErrDuplicate)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.ConnectedNicknames == nil {
		room.ConnectedNicknames = []string{}
	}
	s.roomSeq++
	s.rooms[room.ID] = &roomRecord{room: *room, seq: s.roomSeq}
	return nil
}

// GetRoom retrieves a room and its roster by id.
func (s *Store) GetRoom(_ context.Context, id string) (*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return rec.snapshot(), nil
}

// GetRoomByPin retrieves the oldest room with the given pin.
func (s *Store) GetRoomByPin(_ context.Context, pin string) (*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first *roomRecord
	for _, rec := range s.rooms {
		if rec.room.Pin != pin {
			continue
		}
		if first == nil || rec.seq < first.seq {
			first = rec
		}
	}
	if first == nil {
		return nil, fmt.Errorf("room with pin %s: %w", pin, store.ErrNotFound)
	}
	return first.snapshot(), nil
}

// PinInUse reports whether any room currently uses pin.
func (s *Store) PinInUse(_ context.Context, pin string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.rooms {
		if rec.room.Pin == pin {
			return true, nil
		}
	}
	return false, nil
}

// ListRooms lists all rooms with rosters, oldest first.
func (s *Store) ListRooms(_ context.Context) ([]*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*roomRecord, 0, len(s.rooms))
	for _, rec := range s.rooms {
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *roomRecord) int {
		return cmp.Compare(a.seq, b.seq)
	})

	rooms := make([]*store.Room, 0, len(records))
	for _, rec := range records {
		rooms = append(rooms, rec.snapshot())
	}
	return rooms, nil
}

// DeleteRoom removes a room, its roster and its messages.
func (s *Store) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	delete(s.rooms, id)
	return nil
}

// AddConnected appends nickname to the room roster.
func (s *Store) AddConnected(_ context.Context, roomID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
	}
	for _, n := range rec.roster {
		if n == nickname {
			return fmt.Errorf("nickname %q in room %s: %w", nickname, roomID, store.ErrDuplicate)
		}
	}
	rec.roster = append(rec.roster, nickname)
	return nil
}

// RemoveConnected removes nickname from the room roster.
func (s *Store) RemoveConnected(_ context.Context, roomID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	for i, n := range rec.roster {
		if n == nickname {
			rec.roster = append(rec.roster[:i], rec.roster[i+1:]...)
			break
		}
	}
	return nil
}

// ResetRosters clears every roster.
func (s *Store) ResetRosters(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.rooms {
		rec.roster = nil
	}
	return nil
}

// AppendMessage persists msg at the end of the room log.
func (s *Store) AppendMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[msg.RoomID]
	if !ok {
		return fmt.Errorf("room %s: %w", msg.RoomID, store.ErrNotFound)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.msgSeq++
	msg.ID = s.msgSeq
	rec.messages = append(rec.messages, *msg)
	return nil
}

// ListMessages returns the full room log in append order.
func (s *Store) ListMessages(_ context.Context, roomID string) ([]store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return []store.Message{}, nil
	}
	return append([]store.Message{}, rec.messages...), nil
}

// GetAdmin retrieves an admin by username.
func (s *Store) GetAdmin(_ context.Context, username string) (*store.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[username]
	if !ok {
		return nil, fmt.Errorf("admin %s: %w", username, store.ErrNotFound)
	}
	return &admin, nil
}

// SaveAdmin creates or replaces an admin.
func (s *Store) SaveAdmin(_ context.Context, admin *store.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.admins[admin.Username]; ok {
		admin.CreatedAt = existing.CreatedAt
	} else if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	s.admins[admin.Username] = *admin
	return nil
}
