package rooms

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/memory"
)

type recordingCloser struct {
	closed []string
}

func (c *recordingCloser) CloseRoom(roomID string) int {
	c.closed = append(c.closed, roomID)
	return 0
}

func sequence(values ...string) func() string {
	i := 0
	return func() string {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestCreateGeneratesIDAndPin(t *testing.T) {
	svc, err := New(memory.New(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	idRe := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	pinRe := regexp.MustCompile(`^[0-9]{4}$`)

	seen := make(map[string]bool)
	for _, kind := range []store.RoomKind{store.RoomKindText, store.RoomKindMultimedia} {
		for range 25 {
			room, err := svc.Create(ctx, kind)
			require.NoError(t, err)
			require.Regexp(t, idRe, room.ID)
			require.Regexp(t, pinRe, room.Pin)
			require.Equal(t, kind, room.Kind)
			require.False(t, seen[room.ID], "room id reused")
			seen[room.ID] = true
		}
	}
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	svc, err := New(memory.New(), nil)
	require.NoError(t, err)

	for _, kind := range []store.RoomKind{"", "Texto", "text", "Video"} {
		_, err := svc.Create(context.Background(), kind)
		require.ErrorIs(t, err, ErrInvalidKind)
	}
}

func TestCreateRetriesOnCollisions(t *testing.T) {
	st := memory.New()
	svc, err := New(st, nil,
		WithIDGenerator(sequence("AAAAAA", "AAAAAA", "BBBBBB")),
		WithPinGenerator(sequence("1111", "1111", "2222")),
	)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Create(ctx, store.RoomKindText)
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", first.ID)
	require.Equal(t, "1111", first.Pin)

	second, err := svc.Create(ctx, store.RoomKindText)
	require.NoError(t, err)
	require.Equal(t, "BBBBBB", second.ID)
	require.Equal(t, "2222", second.Pin)
}

func TestCreateGivesUpWhenPinsExhausted(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.CreateRoom(context.Background(), &store.Room{ID: "TAKEN1", Pin: "0000", Kind: store.RoomKindText}))

	svc, err := New(st, nil, WithPinGenerator(func() string { return "0000" }))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), store.RoomKindText)
	require.ErrorIs(t, err, ErrPinsExhausted)
}

func TestDetailListAndDelete(t *testing.T) {
	st := memory.New()
	closer := &recordingCloser{}
	svc, err := New(st, closer)
	require.NoError(t, err)
	ctx := context.Background()

	room, err := svc.Create(ctx, store.RoomKindText)
	require.NoError(t, err)
	require.NoError(t, st.AppendMessage(ctx, &store.Message{RoomID: room.ID, Author: "Ana", Kind: store.MessageKindText, Body: "hola"}))

	detail, err := svc.Detail(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1)
	require.Equal(t, "hola", detail.Messages[0].Body)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Empty(t, list[0].Messages)

	require.NoError(t, svc.Delete(ctx, room.ID))
	require.Equal(t, []string{room.ID}, closer.closed)

	_, err = svc.Detail(ctx, room.ID)
	require.ErrorIs(t, err, ErrRoomNotFound)
	require.ErrorIs(t, svc.Delete(ctx, room.ID), ErrRoomNotFound)
	require.Len(t, closer.closed, 1)
}

func TestBackendErrorsPropagate(t *testing.T) {
	svc, err := New(store.Unavailable(errors.New("down")), nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, store.RoomKindText)
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = svc.List(ctx)
	require.ErrorIs(t, err, store.ErrUnavailable)

	_, err = svc.Detail(ctx, "ROOM01")
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.NotErrorIs(t, err, ErrRoomNotFound)
}
