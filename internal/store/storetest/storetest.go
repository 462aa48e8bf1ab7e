// Package storetest holds a behavioural suite every store.Store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pinchat/internal/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, st store.Store)
	}{
		{"CreateAndGetRoom", testCreateAndGetRoom},
		{"DuplicateRoomID", testDuplicateRoomID},
		{"PinLookupFirstMatch", testPinLookupFirstMatch},
		{"RosterOrderAndUniqueness", testRosterOrderAndUniqueness},
		{"MessagesAppendOrder", testMessagesAppendOrder},
		{"DeleteRoom", testDeleteRoom},
		{"WritesToMissingRoom", testWritesToMissingRoom},
		{"ListRooms", testListRooms},
		{"ResetRosters", testResetRosters},
		{"Admins", testAdmins},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newStore(t)
			t.Cleanup(func() { _ = st.Close() })
			tc.fn(t, st)
		})
	}
}

func mustCreateRoom(t *testing.T, st store.Store, id, pin string, kind store.RoomKind) *store.Room {
	t.Helper()
	room := &store.Room{ID: id, Pin: pin, Kind: kind}
	require.NoError(t, st.CreateRoom(context.Background(), room))
	return room
}

func testCreateAndGetRoom(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ABC123", "4321", store.RoomKindMultimedia)

	room, err := st.GetRoom(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, "4321", room.Pin)
	require.Equal(t, store.RoomKindMultimedia, room.Kind)
	require.Empty(t, room.ConnectedNicknames)
	require.False(t, room.CreatedAt.IsZero())

	_, err = st.GetRoom(ctx, "ZZZZZZ")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetRoomByPin(ctx, "0000")
	require.ErrorIs(t, err, store.ErrNotFound)

	inUse, err := st.PinInUse(ctx, "4321")
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = st.PinInUse(ctx, "0000")
	require.NoError(t, err)
	require.False(t, inUse)
}

func testDuplicateRoomID(t *testing.T, st store.Store) {
	mustCreateRoom(t, st, "ABC123", "1111", store.RoomKindText)
	err := st.CreateRoom(context.Background(), &store.Room{ID: "ABC123", Pin: "2222", Kind: store.RoomKindText})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

// Pins are not unique at the storage level; lookup must resolve to the oldest room.
func testPinLookupFirstMatch(t *testing.T, st store.Store) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateRoom(context.Background(), &store.Room{ID: "FIRST1", Pin: "7777", Kind: store.RoomKindText, CreatedAt: base}))
	require.NoError(t, st.CreateRoom(context.Background(), &store.Room{ID: "SECND2", Pin: "7777", Kind: store.RoomKindText, CreatedAt: base.Add(time.Minute)}))

	for range 5 {
		room, err := st.GetRoomByPin(context.Background(), "7777")
		require.NoError(t, err)
		require.Equal(t, "FIRST1", room.ID)
	}
}

func testRosterOrderAndUniqueness(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindText)
	mustCreateRoom(t, st, "ROOM02", "5678", store.RoomKindText)

	for _, n := range []string{"zoe", "Ana", "bob"} {
		require.NoError(t, st.AddConnected(ctx, "ROOM01", n))
	}
	require.ErrorIs(t, st.AddConnected(ctx, "ROOM01", "Ana"), store.ErrDuplicate)
	require.NoError(t, st.AddConnected(ctx, "ROOM01", "ana"), "nicknames are case-sensitive")
	require.NoError(t, st.AddConnected(ctx, "ROOM02", "Ana"), "uniqueness is per room")

	room, err := st.GetRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Equal(t, []string{"zoe", "Ana", "bob", "ana"}, room.ConnectedNicknames)

	require.NoError(t, st.RemoveConnected(ctx, "ROOM01", "Ana"))
	require.NoError(t, st.RemoveConnected(ctx, "ROOM01", "ghost"))

	room, err = st.GetRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Equal(t, []string{"zoe", "bob", "ana"}, room.ConnectedNicknames)

	require.NoError(t, st.AddConnected(ctx, "ROOM01", "Ana"))
	room, err = st.GetRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Equal(t, []string{"zoe", "bob", "ana", "Ana"}, room.ConnectedNicknames)
}

func testMessagesAppendOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindMultimedia)
	mustCreateRoom(t, st, "ROOM02", "5678", store.RoomKindText)

	msgs := []*store.Message{
		{RoomID: "ROOM01", Author: "Ana", Kind: store.MessageKindText, Body: "hola"},
		{RoomID: "ROOM02", Author: "Bob", Kind: store.MessageKindText, Body: "other room"},
		{RoomID: "ROOM01", Author: "Bob", Kind: store.MessageKindFile, Body: "subió el archivo: notes.txt", FileURL: "/uploads/x_notes.txt", FileName: "notes.txt"},
		{RoomID: "ROOM01", Author: "Ana", Kind: store.MessageKindText, Body: "adios"},
	}
	for _, m := range msgs {
		require.NoError(t, st.AppendMessage(ctx, m))
		require.NotZero(t, m.ID)
		require.False(t, m.CreatedAt.IsZero())
	}

	got, err := st.ListMessages(ctx, "ROOM01")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "hola", got[0].Body)
	require.Equal(t, store.MessageKindFile, got[1].Kind)
	require.Equal(t, "/uploads/x_notes.txt", got[1].FileURL)
	require.Equal(t, "notes.txt", got[1].FileName)
	require.Equal(t, "adios", got[2].Body)
	require.Less(t, got[0].ID, got[1].ID)
	require.Less(t, got[1].ID, got[2].ID)

	empty, err := st.ListMessages(ctx, "NOROOM")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testDeleteRoom(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindText)
	require.NoError(t, st.AddConnected(ctx, "ROOM01", "Ana"))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{RoomID: "ROOM01", Author: "Ana", Kind: store.MessageKindText, Body: "hola"}))

	require.NoError(t, st.DeleteRoom(ctx, "ROOM01"))

	_, err := st.GetRoom(ctx, "ROOM01")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRoomByPin(ctx, "1234")
	require.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := st.ListMessages(ctx, "ROOM01")
	require.NoError(t, err)
	require.Empty(t, msgs)

	require.ErrorIs(t, st.DeleteRoom(ctx, "ROOM01"), store.ErrNotFound)
}

func testWritesToMissingRoom(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindText)
	require.NoError(t, st.DeleteRoom(ctx, "ROOM01"))

	require.ErrorIs(t, st.AddConnected(ctx, "ROOM01", "Ana"), store.ErrNotFound)
	require.ErrorIs(t, st.AddConnected(ctx, "NOROOM", "Ana"), store.ErrNotFound)

	msg := &store.Message{RoomID: "ROOM01", Author: "Ana", Kind: store.MessageKindText, Body: "hola"}
	require.ErrorIs(t, st.AppendMessage(ctx, msg), store.ErrNotFound)
	require.Zero(t, msg.ID)

	// A room recreated under the same id starts clean.
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindText)
	room, err := st.GetRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Empty(t, room.ConnectedNicknames)
	msgs, err := st.ListMessages(ctx, "ROOM01")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func testListRooms(t *testing.T, st store.Store) {
	ctx := context.Background()
	rooms, err := st.ListRooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateRoom(ctx, &store.Room{ID: "ROOM01", Pin: "1111", Kind: store.RoomKindText, CreatedAt: base}))
	require.NoError(t, st.CreateRoom(ctx, &store.Room{ID: "ROOM02", Pin: "2222", Kind: store.RoomKindMultimedia, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, st.AddConnected(ctx, "ROOM02", "Bob"))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{RoomID: "ROOM02", Author: "Bob", Kind: store.MessageKindText, Body: "x"}))

	rooms, err = st.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "ROOM01", rooms[0].ID)
	require.Empty(t, rooms[0].ConnectedNicknames)
	require.Equal(t, "ROOM02", rooms[1].ID)
	require.Equal(t, []string{"Bob"}, rooms[1].ConnectedNicknames)
	require.Empty(t, rooms[1].Messages)
}

func testResetRosters(t *testing.T, st store.Store) {
	ctx := context.Background()
	mustCreateRoom(t, st, "ROOM01", "1234", store.RoomKindText)
	require.NoError(t, st.AddConnected(ctx, "ROOM01", "Ana"))
	require.NoError(t, st.ResetRosters(ctx))

	room, err := st.GetRoom(ctx, "ROOM01")
	require.NoError(t, err)
	require.Empty(t, room.ConnectedNicknames)
}

func testAdmins(t *testing.T, st store.Store) {
	ctx := context.Background()
	_, err := st.GetAdmin(ctx, "admin")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.SaveAdmin(ctx, &store.Admin{Username: "admin", PasswordHash: "h1"}))
	admin, err := st.GetAdmin(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "h1", admin.PasswordHash)

	require.NoError(t, st.SaveAdmin(ctx, &store.Admin{Username: "admin", PasswordHash: "h2"}))
	admin, err = st.GetAdmin(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, "h2", admin.PasswordHash)
}
