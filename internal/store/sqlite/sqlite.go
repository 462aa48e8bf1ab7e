package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/pinchat/internal/store"
)

// Schema creates every table the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	pin        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_pin ON rooms(pin);

CREATE TABLE IF NOT EXISTS room_roster (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id   TEXT NOT NULL,
	nickname  TEXT NOT NULL,
	joined_at DATETIME NOT NULL,
	UNIQUE (room_id, nickname)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	author     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       TEXT NOT NULL,
	file_url   TEXT NOT NULL DEFAULT '',
	file_name  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);

CREATE TABLE IF NOT EXISTS admins (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ==== RoomStore implementation ====

// CreateRoom inserts a room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO rooms (id, pin, kind, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, room.ID, room.Pin, room.Kind, room.CreatedAt); err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("insert room %s: %w", room.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert room: %w", err)
	}
	if room.ConnectedNicknames == nil {
		room.ConnectedNicknames = []string{}
	}
	return nil
}

// GetRoom retrieves a room and its roster by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, pin, kind, created_at
		FROM rooms
		WHERE id = ?
	`
	return s.getRoom(ctx, query, id)
}

// GetRoomByPin retrieves the oldest room with the given pin.
func (s *SQLiteStore) GetRoomByPin(ctx context.Context, pin string) (*store.Room, error) {
	query := `
		SELECT id, pin, kind, created_at
		FROM rooms
		WHERE pin = ?
		ORDER BY rowid ASC
		LIMIT 1
	`
	return s.getRoom(ctx, query, pin)
}

func (s *SQLiteStore) getRoom(ctx context.Context, query string, arg string) (*store.Room, error) {
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&room.ID,
		&room.Pin,
		&room.Kind,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	roster, err := s.roster(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	room.ConnectedNicknames = roster
	return &room, nil
}

func (s *SQLiteStore) roster(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT nickname FROM room_roster WHERE room_id = ? ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	nicknames := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		nicknames = append(nicknames, n)
	}
	return nicknames, rows.Err()
}

// PinInUse reports whether any room currently uses pin.
func (s *SQLiteStore) PinInUse(ctx context.Context, pin string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE pin = ?)`, pin).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pin: %w", err)
	}
	return exists, nil
}

// ListRooms lists all rooms with rosters, oldest first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pin, kind, created_at FROM rooms ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*store.Room{}
	byID := make(map[string]*store.Room)
	for rows.Next() {
		room := &store.Room{ConnectedNicknames: []string{}}
		if err := rows.Scan(&room.ID, &room.Pin, &room.Kind, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
		byID[room.ID] = room
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rosterRows, err := s.db.QueryContext(ctx, `SELECT room_id, nickname FROM room_roster ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rosters: %w", err)
	}
	defer rosterRows.Close()

	for rosterRows.Next() {
		var roomID, nickname string
		if err := rosterRows.Scan(&roomID, &nickname); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		if room, ok := byID[roomID]; ok {
			room.ConnectedNicknames = append(room.ConnectedNicknames, nickname)
		}
	}

	return rooms, rosterRows.Err()
}

// DeleteRoom removes a room, its roster and its messages.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_roster WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	return tx.Commit()
}

// AddConnected appends nickname to the room roster.
func (s *SQLiteStore) AddConnected(ctx context.Context, roomID, nickname string) error {
	query := `
		INSERT INTO room_roster (room_id, nickname, joined_at)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = ?)
	`
	result, err := s.db.ExecContext(ctx, query, roomID, nickname, time.Now().UTC(), roomID)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("nickname %q in room %s: %w", nickname, roomID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert roster entry: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
	}
	return nil
}

// RemoveConnected removes nickname from the room roster.
func (s *SQLiteStore) RemoveConnected(ctx context.Context, roomID, nickname string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM room_roster WHERE room_id = ? AND nickname = ?`, roomID, nickname); err != nil {
		return fmt.Errorf("delete roster entry: %w", err)
	}
	return nil
}

// ResetRosters clears every roster.
func (s *SQLiteStore) ResetRosters(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM room_roster`); err != nil {
		return fmt.Errorf("reset rosters: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// AppendMessage persists a message at the end of the room log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (room_id, author, kind, body, file_url, file_name, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.RoomID, msg.Author, msg.Kind, msg.Body, msg.FileURL, msg.FileName, msg.CreatedAt, msg.RoomID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("room %s: %w", msg.RoomID, store.ErrNotFound)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListMessages returns the full room log in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]store.Message, error) {
	query := `
		SELECT id, room_id, author, kind, body, file_url, file_name, created_at
		FROM messages
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []store.Message{}
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.Author,
			&msg.Kind,
			&msg.Body,
			&msg.FileURL,
			&msg.FileName,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// ==== AdminStore implementation ====

// GetAdmin retrieves an admin by username.
func (s *SQLiteStore) GetAdmin(ctx context.Context, username string) (*store.Admin, error) {
	var admin store.Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, created_at FROM admins WHERE username = ?`, username,
	).Scan(&admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &admin, nil
}

// SaveAdmin creates or replaces an admin.
func (s *SQLiteStore) SaveAdmin(ctx context.Context, admin *store.Admin) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO admins (username, password_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash
	`
	if _, err := s.db.ExecContext(ctx, query, admin.Username, admin.PasswordHash, admin.CreatedAt); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}
