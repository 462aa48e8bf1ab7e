package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/pinchat/internal/store"
)

// Schema creates every table the store needs. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	seq        BIGSERIAL UNIQUE,
	id         TEXT PRIMARY KEY,
	pin        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rooms_pin ON rooms(pin);

CREATE TABLE IF NOT EXISTS room_roster (
	id        BIGSERIAL PRIMARY KEY,
	room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	nickname  TEXT NOT NULL,
	joined_at TIMESTAMPTZ NOT NULL,
	UNIQUE (room_id, nickname)
);

CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	author     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       TEXT NOT NULL,
	file_url   TEXT NOT NULL DEFAULT '',
	file_name  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);

CREATE TABLE IF NOT EXISTS admins (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and applies Schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateRoom inserts a room.
func (s *PostgresStore) CreateRoom(ctx context.Context, room *store.Room) error {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (id, pin, kind, created_at) VALUES ($1, $2, $3, $4)`,
		room.ID, room.Pin, string(room.Kind), room.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
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
func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	return s.getRoom(ctx, `SELECT id, pin, kind, created_at FROM rooms WHERE id = $1`, id)
}

// GetRoomByPin retrieves the oldest room with the given pin.
func (s *PostgresStore) GetRoomByPin(ctx context.Context, pin string) (*store.Room, error) {
	return s.getRoom(ctx, `SELECT id, pin, kind, created_at FROM rooms WHERE pin = $1 ORDER BY seq ASC LIMIT 1`, pin)
}

func (s *PostgresStore) getRoom(ctx context.Context, query, arg string) (*store.Room, error) {
	var room store.Room
	var kind string
	err := s.pool.QueryRow(ctx, query, arg).Scan(&room.ID, &room.Pin, &kind, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	room.Kind = store.RoomKind(kind)

	rows, err := s.pool.Query(ctx, `SELECT nickname FROM room_roster WHERE room_id = $1 ORDER BY id`, room.ID)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	roster, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan roster: %w", err)
	}
	room.ConnectedNicknames = append([]string{}, roster...)
	return &room, nil
}

// PinInUse reports whether any room currently uses pin.
func (s *PostgresStore) PinInUse(ctx context.Context, pin string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE pin = $1)`, pin).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pin: %w", err)
	}
	return exists, nil
}

// ListRooms lists all rooms with rosters, oldest first.
func (s *PostgresStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, pin, kind, created_at FROM rooms ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*store.Room{}
	byID := make(map[string]*store.Room)
	for rows.Next() {
		room := &store.Room{ConnectedNicknames: []string{}}
		var kind string
		if err := rows.Scan(&room.ID, &room.Pin, &kind, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Kind = store.RoomKind(kind)
		rooms = append(rooms, room)
		byID[room.ID] = room
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rosterRows, err := s.pool.Query(ctx, `SELECT room_id, nickname FROM room_roster ORDER BY id`)
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

// DeleteRoom removes a room; roster and messages cascade.
func (s *PostgresStore) DeleteRoom(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// AddConnected appends nickname to the room roster.
func (s *PostgresStore) AddConnected(ctx context.Context, roomID, nickname string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO room_roster (room_id, nickname, joined_at)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = $1)
	`, roomID, nickname, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("nickname %q in room %s: %w", nickname, roomID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert roster entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, store.ErrNotFound)
	}
	return nil
}

// RemoveConnected removes nickname from the room roster.
func (s *PostgresStore) RemoveConnected(ctx context.Context, roomID, nickname string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM room_roster WHERE room_id = $1 AND nickname = $2`, roomID, nickname); err != nil {
		return fmt.Errorf("delete roster entry: %w", err)
	}
	return nil
}

// ResetRosters clears every roster.
func (s *PostgresStore) ResetRosters(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM room_roster`); err != nil {
		return fmt.Errorf("reset rosters: %w", err)
	}
	return nil
}

// AppendMessage persists msg at the end of the room log.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (room_id, author, kind, body, file_url, file_name, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM rooms WHERE id = $1)
		RETURNING id
	`, msg.RoomID, msg.Author, string(msg.Kind), msg.Body, msg.FileURL, msg.FileName, msg.CreatedAt).Scan(&msg.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("room %s: %w", msg.RoomID, store.ErrNotFound)
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the full room log in append order.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string) ([]store.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, author, kind, body, file_url, file_name, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY id ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []store.Message{}
	for rows.Next() {
		var msg store.Message
		var kind string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Author, &kind, &msg.Body, &msg.FileURL, &msg.FileName, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetAdmin retrieves an admin by username.
func (s *PostgresStore) GetAdmin(ctx context.Context, username string) (*store.Admin, error) {
	var admin store.Admin
	err := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, created_at FROM admins WHERE username = $1`, username,
	).Scan(&admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", username, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &admin, nil
}

// SaveAdmin creates or replaces an admin.
func (s *PostgresStore) SaveAdmin(ctx context.Context, admin *store.Admin) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admins (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}
