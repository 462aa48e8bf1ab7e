package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/config"
	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/proto"
)

var errSlowConsumer = errors.New("client is not keeping up with events")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub            *core.Hub
	log            *zerolog.Logger
	originPatterns []string
	readLimit      int64
	rateLimit      int

	// stop ends every live connection on Shutdown.
	stop   context.Context
	stopFn context.CancelFunc

	mu     sync.Mutex
	closed bool
	live   sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	readLimit := int64(cfg.MaxMessageBytes) + 1024
	if cfg.MaxMessageBytes <= 0 {
		readLimit = 32 << 10
	}
	stop, stopFn := context.WithCancel(context.Background())
	return &WSHandler{
		hub:            hub,
		log:            logger,
		originPatterns: cfg.WSOriginPatterns,
		readLimit:      readLimit,
		rateLimit:      cfg.WSRateLimit,
		stop:           stop,
		stopFn:         stopFn,
	}
}

// Shutdown closes every live connection and waits until their disconnects
// have finished or ctx is done. New upgrades are refused afterwards.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.stopFn()

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for websocket connections: %w", ctx.Err())
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		stdhttp.Error(w, "server shutting down", stdhttp.StatusServiceUnavailable)
		return
	}
	h.live.Add(1)
	h.mu.Unlock()
	defer h.live.Done()

	opts := &websocket.AcceptOptions{OriginPatterns: h.originPatterns}
	if len(h.originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.readLimit)

	client, err := h.hub.Connect(uuid.NewString())
	if err != nil {
		h.log.Error().Err(err).Msg("register connection")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	logger := h.log.With().Str("conn_id", client.ID).Logger()

	// The request context ends when the handler returns; the connection
	// lifetime is tracked separately.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	stopWatch := context.AfterFunc(h.stop, cancel)
	defer stopWatch()

	serveDone := make(chan struct{})
	go func() {
		h.hub.Serve(ctx, client)
		close(serveDone)
	}()
	// Disconnect must finish before the handler returns.
	defer func() {
		cancel()
		<-serveDone
	}()

	if err := wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventConnected,
		Data:  proto.EventConnectedData{ConnectionID: client.ID},
	}); err != nil {
		logger.Debug().Err(err).Msg("write connected event")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case h.stop.Err() != nil:
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	case errors.Is(err, errSlowConsumer):
		status = websocket.StatusPolicyViolation
		reason = "slow consumer"
		logger.Warn().Msg("closing slow consumer")
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF):
		// A close frame from the peer ends the session normally; anything else is a transport failure.
		if websocket.CloseStatus(err) == -1 {
			status = websocket.StatusInternalError
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.Debug().Err(err).Msg("read ws inbound")
			}
			return err
		}

		if !limiter.allow() {
			if err := writeProtoError(ctx, conn, &proto.Error{Code: "rate_limited", Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := writeProtoError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Debug().Err(err).Msg("write ws event")
				return err
			}
		case <-client.Overflow():
			return errSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeProtoError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: protoErr,
	})
}
