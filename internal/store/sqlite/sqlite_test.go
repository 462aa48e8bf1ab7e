package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/storetest"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()

	st, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	require.NoError(t, err, "failed to create store")
	return st
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestNewAppliesSchemaAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinchat.db")
	ctx := context.Background()

	st, err := New(path)
	require.NoError(t, err)
	require.NoError(t, st.CreateRoom(ctx, &store.Room{ID: "ROOM01", Pin: "1234", Kind: store.RoomKindText}))
	require.NoError(t, st.Close())

	// Reopening must not fail on the already-applied schema.
	st, err = New(path)
	require.NoError(t, err)
	defer st.Close()

	room, err := st.GetRoomByPin(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, "ROOM01", room.ID)
}
