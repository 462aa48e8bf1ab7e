package store

import (
	"context"
	"fmt"
)

type unavailableStore struct {
	cause error
}

// Unavailable returns a Store whose every operation fails with ErrUnavailable
// wrapping cause. The app falls back to it when the real backend cannot be opened.
func Unavailable(cause error) Store {
	return &unavailableStore{cause: cause}
}

func (u *unavailableStore) err() error {
	if u.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (u *unavailableStore) CreateRoom(context.Context, *Room) error { return u.err() }

func (u *unavailableStore) GetRoom(context.Context, string) (*Room, error) { return nil, u.err() }

func (u *unavailableStore) GetRoomByPin(context.Context, string) (*Room, error) {
	return nil, u.err()
}

func (u *unavailableStore) PinInUse(context.Context, string) (bool, error) { return false, u.err() }

func (u *unavailableStore) ListRooms(context.Context) ([]*Room, error) { return nil, u.err() }

func (u *unavailableStore) DeleteRoom(context.Context, string) error { return u.err() }

func (u *unavailableStore) AddConnected(context.Context, string, string) error { return u.err() }

func (u *unavailableStore) RemoveConnected(context.Context, string, string) error { return u.err() }

func (u *unavailableStore) ResetRosters(context.Context) error { return u.err() }

func (u *unavailableStore) AppendMessage(context.Context, *Message) error { return u.err() }

func (u *unavailableStore) ListMessages(context.Context, string) ([]Message, error) {
	return nil, u.err()
}

func (u *unavailableStore) GetAdmin(context.Context, string) (*Admin, error) { return nil, u.err() }

func (u *unavailableStore) SaveAdmin(context.Context, *Admin) error { return u.err() }

func (u *unavailableStore) Close() error { return nil }
