package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vovakirdan/pinchat/internal/store"
)

// SendText appends a text message to the sender's room and fans it out.
// Empty or whitespace-only bodies are rejected without touching the log.
func (h *Hub) SendText(ctx context.Context, connID, body string) error {
	sess, err := h.sessions.Lookup(connID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}
	if len(body) > h.opts.MaxMessageBytes {
		return ErrMessageTooLong
	}

	return h.relay(ctx, sess, &store.Message{
		RoomID:    sess.RoomID,
		Author:    sess.Nickname,
		Kind:      store.MessageKindText,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
}

// AuthorizeFile checks that connID may post a file right now.
// The upload surface calls it before storing any bytes.
func (h *Hub) AuthorizeFile(ctx context.Context, connID string) (Session, error) {
	sess, err := h.sessions.Lookup(connID)
	if err != nil {
		return Session{}, err
	}

	opCtx, cancel := h.opContext(ctx)
	room, err := h.store.GetRoom(opCtx, sess.RoomID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, Backend(err)
	}
	if room.Kind != store.RoomKindMultimedia {
		return Session{}, ErrRoomNotMultimedia
	}
	return sess, nil
}

// SendFile records a stored blob as a file message and fans it out.
func (h *Hub) SendFile(ctx context.Context, connID string, ref FileRef) error {
	sess, err := h.AuthorizeFile(ctx, connID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(ref.URL) == "" || strings.TrimSpace(ref.Name) == "" {
		return ErrInvalidFile
	}
	return h.relay(ctx, sess, fileMessage(sess, ref))
}

// relay appends msg under the room lock and broadcasts it to the members present after the append.
func (h *Hub) relay(ctx context.Context, sess Session, msg *store.Message) error {
	rs := h.acquireRoom(sess.RoomID)
	defer h.releaseRoom(rs)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	// The room may have been closed between lookup and lock.
	current, err := h.sessions.Lookup(sess.ConnID)
	if err != nil || current.RoomID != sess.RoomID {
		return ErrNoSession
	}

	opCtx, cancel := h.opContext(ctx)
	err = h.store.AppendMessage(opCtx, msg)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted but not closed yet: the sender has no room to talk to.
			return ErrNoSession
		}
		h.log.Error().Err(err).Str("room_id", sess.RoomID).Msg("append message failed")
		return Backend(err)
	}

	h.logDropped(rs.id, rs.broadcast(&Event{Kind: EventMessage, RoomID: sess.RoomID, Message: msg}))
	return nil
}
