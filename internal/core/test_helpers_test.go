package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/memory"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the next event without skipping any.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func newTestHub(t *testing.T) (*Hub, *memory.Store) {
	t.Helper()

	st := memory.New()
	return NewHub(st, NewSessionTable(), nil, Options{}), st
}

func createRoom(t *testing.T, st store.Store, id, pin string, kind store.RoomKind) {
	t.Helper()
	require.NoError(t, st.CreateRoom(context.Background(), &store.Room{ID: id, Pin: pin, Kind: kind}))
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c, err := hub.Connect(id)
	require.NoError(t, err)
	return c
}

func join(t *testing.T, hub *Hub, c *Client, pin, nickname string) *JoinResult {
	t.Helper()

	res, err := hub.Join(context.Background(), c, pin, nickname)
	require.NoError(t, err)
	return res
}
