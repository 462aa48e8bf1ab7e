package blob

import (
	"context"
	"fmt"
	"io"
)

type unavailableStore struct {
	cause error
}

// Unavailable returns a Store whose every operation fails with ErrUnavailable
// wrapping cause. The app falls back to it when the upload backend cannot be opened.
func Unavailable(cause error) Store {
	return unavailableStore{cause: cause}
}

func (u unavailableStore) err() error {
	if u.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, u.cause)
}

func (u unavailableStore) Put(context.Context, string, io.Reader) (int64, error) { return 0, u.err() }

func (u unavailableStore) Open(context.Context, string) (io.ReadCloser, int64, error) {
	return nil, 0, u.err()
}

func (u unavailableStore) Delete(context.Context, string) error { return u.err() }

func (u unavailableStore) Close() error { return nil }
