package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pinchat/internal/proto"
)

// chatFrame is an outbound frame with its payload left raw.
type chatFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func newChatCmd() *cobra.Command {
	var addr, pin, nickname string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room from the terminal",
		Long:  "Join a room from the terminal. Lines are sent as messages; /leave leaves the room.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, addr, pin, nickname, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "ws://localhost:5001/ws", "WebSocket address")
	cmd.Flags().StringVar(&pin, "pin", "", "room PIN")
	cmd.Flags().StringVar(&nickname, "nickname", "", "nickname shown in the room")
	_ = cmd.MarkFlagRequired("pin")
	_ = cmd.MarkFlagRequired("nickname")
	return cmd
}

func runChat(parent context.Context, addr, pin, nickname string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := sendInbound(ctx, conn, proto.InboundTypeJoin, proto.JoinData{Pin: pin, Nickname: nickname}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s as %s. Type messages and press Enter, /leave to leave, Ctrl+C to exit.\n", addr, nickname)

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		readErr <- chatReadLoop(ctx, conn, out)
	}()

	chatWriteLoop(ctx, conn, in)
	cancel()
	if err := <-readErr; err != nil {
		return err
	}
	return nil
}

func sendInbound(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func chatReadLoop(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	for {
		var frame chatFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if line := formatFrame(frame); line != "" {
			fmt.Fprintln(out, line)
		}
	}
}

func chatWriteLoop(ctx context.Context, conn *websocket.Conn, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			var err error
			switch text {
			case "":
				continue
			case "/leave":
				err = sendInbound(ctx, conn, proto.InboundTypeLeave, struct{}{})
			default:
				err = sendInbound(ctx, conn, proto.InboundTypeSend, proto.SendData{Body: text})
			}
			if err != nil {
				return
			}
		}
	}
}

// formatFrame renders one server frame as a terminal line; empty means nothing to show.
func formatFrame(frame chatFrame) string {
	if frame.Type == proto.OutboundTypeError {
		if frame.Error == nil {
			return "error"
		}
		return fmt.Sprintf("error [%s]: %s", frame.Error.Code, frame.Error.Msg)
	}

	switch frame.Event {
	case proto.EventConnected:
		return ""
	case proto.EventChatHistory:
		var data proto.EventChatHistoryData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return "bad chat_history payload"
		}
		lines := []string{fmt.Sprintf("joined room %s (%s), online: %s", data.RoomID, data.RoomKind, strings.Join(data.Roster, ", "))}
		for _, msg := range data.History {
			lines = append(lines, formatMessage(msg))
		}
		return strings.Join(lines, "\n")
	case proto.EventRoster:
		var data proto.EventRosterData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return "bad update_roster payload"
		}
		return "online: " + strings.Join(data.Roster, ", ")
	case proto.EventNewMessage:
		var data proto.EventNewMessageData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return "bad new_message payload"
		}
		return formatMessage(data.Message)
	case proto.EventRoomClosed:
		return "the room was closed by an administrator"
	default:
		return fmt.Sprintf("event=%s data=%s", frame.Event, frame.Data)
	}
}

func formatMessage(msg proto.Message) string {
	switch msg.Kind {
	case "system":
		return "* " + msg.Body
	case "file":
		return fmt.Sprintf("%s: %s (%s)", msg.Author, msg.FileName, msg.FileURL)
	default:
		return fmt.Sprintf("%s: %s", msg.Author, msg.Body)
	}
}
