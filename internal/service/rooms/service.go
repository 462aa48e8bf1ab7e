package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/vovakirdan/pinchat/internal/store"
)

const (
	idAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength    = 6
	pinAlphabet = "0123456789"
	pinLength   = 4

	defaultMaxAttempts = 32
	defaultOpTimeout   = 5 * time.Second
)

// Common errors for room operations.
var (
	ErrInvalidKind   = errors.New("kind must be 'Text' or 'Multimedia'")
	ErrRoomNotFound  = errors.New("room not found")
	ErrIDsExhausted  = errors.New("could not allocate a free room id")
	ErrPinsExhausted = errors.New("could not allocate a free pin")
)

// Closer is told when a room is deleted so live sessions can be dropped.
type Closer interface {
	CloseRoom(roomID string) int
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides room id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithPinGenerator overrides pin generation.
func WithPinGenerator(gen func() string) Option {
	return func(s *Service) { s.newPin = gen }
}

// WithOpTimeout bounds each repository call.
func WithOpTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// Service provides room administration logic.
type Service struct {
	store       store.Store
	closer      Closer
	newID       func() string
	newPin      func() string
	maxAttempts int
	opTimeout   time.Duration
}

// New creates a room service. closer may be nil.
func New(st store.Store, closer Closer, opts ...Option) (*Service, error) {
	newID, err := nanoid.CustomASCII(idAlphabet, idLength)
	if err != nil {
		return nil, fmt.Errorf("id generator: %w", err)
	}
	newPin, err := nanoid.CustomASCII(pinAlphabet, pinLength)
	if err != nil {
		return nil, fmt.Errorf("pin generator: %w", err)
	}

	s := &Service{
		store:       st,
		closer:      closer,
		newID:       newID,
		newPin:      newPin,
		maxAttempts: defaultMaxAttempts,
		opTimeout:   defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Create makes a room of the given kind with a fresh id and a pin no live room uses.
func (s *Service) Create(ctx context.Context, kind store.RoomKind) (*store.Room, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	pin, err := s.freePin(ctx)
	if err != nil {
		return nil, err
	}

	for range s.maxAttempts {
		room := &store.Room{
			ID:                 s.newID(),
			Pin:                pin,
			Kind:               kind,
			ConnectedNicknames: []string{},
			CreatedAt:          time.Now().UTC(),
		}

		opCtx, cancel := s.opContext(ctx)
		err := s.store.CreateRoom(opCtx, room)
		cancel()
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("create room: %w", err)
		}
	}
	return nil, ErrIDsExhausted
}

func (s *Service) freePin(ctx context.Context) (string, error) {
	for range s.maxAttempts {
		pin := s.newPin()

		opCtx, cancel := s.opContext(ctx)
		inUse, err := s.store.PinInUse(opCtx, pin)
		cancel()
		if err != nil {
			return "", fmt.Errorf("check pin: %w", err)
		}
		if !inUse {
			return pin, nil
		}
	}
	return "", ErrPinsExhausted
}

// List returns every room with its roster, oldest first.
func (s *Service) List(ctx context.Context) ([]*store.Room, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	rooms, err := s.store.ListRooms(opCtx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Detail returns a room together with its full message log.
func (s *Service) Detail(ctx context.Context, id string) (*store.Room, error) {
	opCtx, cancel := s.opContext(ctx)
	room, err := s.store.GetRoom(opCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	opCtx, cancel = s.opContext(ctx)
	msgs, err := s.store.ListMessages(opCtx, id)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	room.Messages = msgs
	return room, nil
}

// Delete removes the room and closes its live sessions.
func (s *Service) Delete(ctx context.Context, id string) error {
	opCtx, cancel := s.opContext(ctx)
	err := s.store.DeleteRoom(opCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("delete room: %w", err)
	}

	if s.closer != nil {
		s.closer.CloseRoom(id)
	}
	return nil
}
