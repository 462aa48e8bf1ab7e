package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/store"
)

const (
	// DefaultOpTimeout bounds every repository call made by the hub.
	DefaultOpTimeout = 5 * time.Second
	// DefaultMaxMessageBytes caps the body of a text message.
	DefaultMaxMessageBytes = 4096
)

// Options tunes a Hub.
type Options struct {
	OpTimeout       time.Duration
	MaxMessageBytes int
	EventBuffer     int
}

// Hub coordinates sessions, room membership and message relay.
type Hub struct {
	store    store.Store
	sessions *SessionTable
	log      *zerolog.Logger
	opts     Options

	roomsMu sync.Mutex
	rooms   map[string]*roomState
}

// NewHub creates a hub backed by st. A nil logger disables logging.
func NewHub(st store.Store, sessions *SessionTable, logger *zerolog.Logger, opts Options) *Hub {
	if sessions == nil {
		sessions = NewSessionTable()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	return &Hub{
		store:    st,
		sessions: sessions,
		log:      logger,
		opts:     opts,
		rooms:    make(map[string]*roomState),
	}
}

// Sessions returns the session table the hub writes to.
func (h *Hub) Sessions() *SessionTable {
	return h.sessions
}

// Connect registers a new connection in state Connected.
func (h *Hub) Connect(connID string) (*Client, error) {
	c := NewClient(connID, h.opts.EventBuffer)
	if !h.sessions.Register(c) {
		return nil, Validation("connection id already registered")
	}
	h.log.Debug().Str("conn_id", connID).Msg("connection registered")
	return c, nil
}

// Serve consumes the client's commands in order until ctx is done or
// Commands is closed, then disconnects the client.
func (h *Hub) Serve(ctx context.Context, c *Client) {
	defer h.Disconnect(ctx, c.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			if cmd != nil {
				h.handle(ctx, c, cmd)
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	logger := h.log.With().Str("conn_id", c.ID).Str("command", cmd.Kind.String()).Logger()

	switch cmd.Kind {
	case CommandJoinRoom:
		if _, err := h.Join(ctx, c, cmd.Pin, cmd.Nickname); err != nil {
			e := AsError(err)
			if e.Class == ClassBackend {
				logger.Error().Err(err).Msg("join failed")
			} else {
				logger.Debug().Str("code", e.Code).Msg("join rejected")
			}
			c.deliver(&Event{Kind: EventJoinError, Error: e})
		}
	case CommandSendMessage:
		if err := h.SendText(ctx, c.ID, cmd.Body); err != nil {
			logger.Debug().Err(err).Msg("message dropped")
		}
	case CommandLeaveRoom:
		h.Leave(ctx, c.ID)
	default:
		logger.Warn().Msg("unknown command")
	}
}

// Disconnect releases the connection and runs leave semantics if it was joined.
// Only the first call for a connection has any effect.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	sess, registered := h.sessions.Release(connID)
	if !registered {
		return
	}
	if sess != nil {
		// The caller's context is often already cancelled by a dropped transport.
		h.leaveRoom(context.WithoutCancel(ctx), *sess)
	}
	h.log.Debug().Str("conn_id", connID).Msg("connection released")
}

// opContext bounds a single repository call.
func (h *Hub) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.opts.OpTimeout)
}

func (h *Hub) logDropped(roomID string, dropped []string) {
	for _, id := range dropped {
		h.log.Warn().Str("conn_id", id).Str("room_id", roomID).Msg("slow consumer, event dropped")
	}
}
