package core

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/pinchat/internal/store"
)

// MaxNicknameRunes caps nickname length.
const MaxNicknameRunes = 32

// JoinResult is what a successful join hands back to the joiner.
type JoinResult struct {
	RoomID  string
	Kind    store.RoomKind
	History []store.Message
	Roster  []string
}

// Join binds c to the room behind pin under nickname.
//
// On success every member (the joiner included) receives the new roster,
// then the joiner alone receives the history, then every member receives the
// join notice. All three are enqueued while the room lock is held.
func (h *Hub) Join(ctx context.Context, c *Client, pin, nickname string) (*JoinResult, error) {
	pin = strings.TrimSpace(pin)
	nickname = strings.TrimSpace(nickname)
	if pin == "" {
		return nil, Validation("pin is required")
	}
	if nickname == "" {
		return nil, Validation("nickname is required")
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameRunes {
		return nil, Validation("nickname is too long")
	}

	opCtx, cancel := h.opContext(ctx)
	room, err := h.store.GetRoomByPin(opCtx, pin)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidPin
		}
		return nil, Backend(err)
	}

	rs := h.acquireRoom(room.ID)
	defer h.releaseRoom(rs)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	// Re-read under the lock: the roster may have moved, or the room may be gone.
	opCtx, cancel = h.opContext(ctx)
	room, err = h.store.GetRoom(opCtx, room.ID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidPin
		}
		return nil, Backend(err)
	}
	if room.HasNickname(nickname) {
		return nil, ErrNicknameTaken
	}
	if err := h.sessions.Bind(c.ID, nickname, room.ID); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	history, err := h.admit(ctx, room.ID, nickname)
	if err != nil {
		h.sessions.unbindFrom(c.ID, room.ID)
		return nil, err
	}

	rs.members[c.ID] = c
	roster := append(append([]string{}, room.ConnectedNicknames...), nickname)

	h.logDropped(rs.id, rs.broadcast(&Event{Kind: EventRoster, RoomID: room.ID, Roster: roster}))
	c.deliver(&Event{
		Kind:     EventHistory,
		RoomID:   room.ID,
		RoomKind: room.Kind,
		History:  history,
		Roster:   roster,
	})
	h.logDropped(rs.id, rs.broadcast(&Event{Kind: EventMessage, RoomID: room.ID, Message: joinedMessage(room.ID, nickname)}))

	h.log.Info().
		Str("conn_id", c.ID).
		Str("room_id", room.ID).
		Str("nickname", nickname).
		Msg("joined room")

	return &JoinResult{RoomID: room.ID, Kind: room.Kind, History: history, Roster: roster}, nil
}

// admit persists nickname on the roster and loads the room log.
// The roster entry is rolled back if the log cannot be read.
func (h *Hub) admit(ctx context.Context, roomID, nickname string) ([]store.Message, error) {
	opCtx, cancel := h.opContext(ctx)
	err := h.store.AddConnected(opCtx, roomID, nickname)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrNicknameTaken
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrInvalidPin
		default:
			return nil, Backend(err)
		}
	}

	opCtx, cancel = h.opContext(ctx)
	history, err := h.store.ListMessages(opCtx, roomID)
	cancel()
	if err != nil {
		rbCtx, rbCancel := h.opContext(ctx)
		if rbErr := h.store.RemoveConnected(rbCtx, roomID, nickname); rbErr != nil {
			h.log.Error().Err(rbErr).Str("room_id", roomID).Str("nickname", nickname).Msg("roster rollback failed")
		}
		rbCancel()
		return nil, Backend(err)
	}
	if history == nil {
		history = []store.Message{}
	}
	return history, nil
}

// Leave unbinds connID from its room. It is a no-op without a session.
func (h *Hub) Leave(ctx context.Context, connID string) {
	sess, err := h.sessions.Unbind(connID)
	if err != nil {
		return
	}
	h.leaveRoom(ctx, sess)
}

// leaveRoom removes an already unbound session from its room and notifies the rest.
func (h *Hub) leaveRoom(ctx context.Context, sess Session) {
	rs := h.acquireRoom(sess.RoomID)
	defer h.releaseRoom(rs)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.members, sess.ConnID)

	logger := h.log.With().
		Str("conn_id", sess.ConnID).
		Str("room_id", sess.RoomID).
		Str("nickname", sess.Nickname).
		Logger()

	opCtx, cancel := h.opContext(ctx)
	err := h.store.RemoveConnected(opCtx, sess.RoomID, sess.Nickname)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("remove from roster failed")
	}

	opCtx, cancel = h.opContext(ctx)
	room, err := h.store.GetRoom(opCtx, sess.RoomID)
	cancel()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error().Err(err).Msg("reload room after leave failed")
		}
		return
	}

	h.logDropped(rs.id, rs.broadcast(&Event{Kind: EventRoster, RoomID: room.ID, Roster: room.ConnectedNicknames}))
	h.logDropped(rs.id, rs.broadcast(&Event{Kind: EventMessage, RoomID: room.ID, Message: leftMessage(room.ID, sess.Nickname)}))

	logger.Info().Msg("left room")
}

// CloseRoom notifies and unbinds every member of a deleted room.
// Members go back to state Connected and may join another room.
func (h *Hub) CloseRoom(roomID string) int {
	rs := h.acquireRoom(roomID)
	defer h.releaseRoom(rs)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ev := &Event{Kind: EventRoomClosed, RoomID: roomID}
	closed := 0
	for id, c := range rs.members {
		if h.sessions.unbindFrom(id, roomID) {
			closed++
		}
		if !c.deliver(ev) {
			h.logDropped(roomID, []string{id})
		}
		delete(rs.members, id)
	}

	h.log.Info().Str("room_id", roomID).Int("members", closed).Msg("room closed")
	return closed
}
