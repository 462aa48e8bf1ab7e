package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/proto"
	"github.com/vovakirdan/pinchat/internal/store"
)

// wireFrame mirrors proto.Outbound with a raw payload for decoding in tests.
type wireFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	connID string
}

func dialWS(t *testing.T, env *testEnv) *wsClient {
	t.Helper()
	return dialURL(t, env.wsURL())
}

func dialURL(t *testing.T, url string) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	c := &wsClient{t: t, conn: conn}
	frame := c.waitFor(proto.EventConnected)
	var data proto.EventConnectedData
	if err := json.Unmarshal(frame.Data, &data); err != nil || data.ConnectionID == "" {
		t.Fatalf("bad connected payload %s: %v", frame.Data, err)
	}
	c.connID = data.ConnectionID
	return c
}

func (c *wsClient) send(typ string, data any) {
	c.t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		c.t.Fatalf("write %s: %v", typ, err)
	}
}

func (c *wsClient) read() wireFrame {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var frame wireFrame
	if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	return frame
}

// waitFor skips frames until one carries the given event name.
func (c *wsClient) waitFor(event string) wireFrame {
	c.t.Helper()

	for i := 0; i < 20; i++ {
		frame := c.read()
		if frame.Event == event {
			return frame
		}
	}
	c.t.Fatalf("event %q not received", event)
	return wireFrame{}
}

func (c *wsClient) join(pin, nickname string) proto.EventChatHistoryData {
	c.t.Helper()

	c.send(proto.InboundTypeJoin, proto.JoinData{Pin: pin, Nickname: nickname})
	frame := c.waitFor(proto.EventChatHistory)
	var history proto.EventChatHistoryData
	if err := json.Unmarshal(frame.Data, &history); err != nil {
		c.t.Fatalf("unmarshal history: %v", err)
	}
	return history
}

func seedRoom(t *testing.T, env *testEnv, id, pin string, kind store.RoomKind) {
	t.Helper()
	if err := env.store.CreateRoom(context.Background(), &store.Room{ID: id, Pin: pin, Kind: kind}); err != nil {
		t.Fatalf("create room %s: %v", id, err)
	}
}

func TestWSJoinAndRelay(t *testing.T) {
	env := startTestServer(t, nil)
	seedRoom(t, env, "ROOM01", "1234", store.RoomKindText)

	ana := dialWS(t, env)
	history := ana.join("1234", "Ana")
	if history.RoomID != "ROOM01" || history.RoomKind != "Text" {
		t.Fatalf("unexpected history header: %+v", history)
	}
	if len(history.History) != 0 {
		t.Fatalf("expected empty history, got %+v", history.History)
	}

	beto := dialWS(t, env)
	beto.join("1234", "Beto")

	// Ana sees Beto arrive.
	frame := ana.waitFor(proto.EventRoster)
	var roster proto.EventRosterData
	if err := json.Unmarshal(frame.Data, &roster); err != nil {
		t.Fatalf("unmarshal roster: %v", err)
	}
	if len(roster.Roster) != 2 {
		t.Fatalf("expected two members, got %v", roster.Roster)
	}

	beto.send(proto.InboundTypeSend, proto.SendData{Body: "hola"})

	for _, c := range []*wsClient{ana, beto} {
		for {
			frame := c.waitFor(proto.EventNewMessage)
			var msg proto.EventNewMessageData
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				t.Fatalf("unmarshal message: %v", err)
			}
			if msg.Message.Kind != "text" {
				continue
			}
			if msg.Message.Author != "Beto" || msg.Message.Body != "hola" {
				t.Fatalf("unexpected message: %+v", msg.Message)
			}
			break
		}
	}

	msgs, err := env.store.ListMessages(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "hola" {
		t.Fatalf("expected one persisted message, got %+v", msgs)
	}
}

func TestWSJoinErrors(t *testing.T) {
	env := startTestServer(t, nil)
	seedRoom(t, env, "ROOM01", "1234", store.RoomKindText)

	ana := dialWS(t, env)
	ana.send(proto.InboundTypeJoin, proto.JoinData{Pin: "9999", Nickname: "Ana"})
	frame := ana.waitFor(proto.EventJoinError)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != "invalid_pin" {
		t.Fatalf("expected invalid_pin, got %+v", frame)
	}

	ana.join("1234", "Ana")

	other := dialWS(t, env)
	other.send(proto.InboundTypeJoin, proto.JoinData{Pin: "1234", Nickname: "Ana"})
	frame = other.waitFor(proto.EventJoinError)
	if frame.Error == nil || frame.Error.Code != "nickname_taken" {
		t.Fatalf("expected nickname_taken, got %+v", frame)
	}
}

func TestWSUnknownMessageType(t *testing.T) {
	env := startTestServer(t, nil)

	c := dialWS(t, env)
	c.send("dance", map[string]string{})
	frame := c.read()
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != "invalid_message" {
		t.Fatalf("expected invalid_message error, got %+v", frame)
	}
}

func TestWSRoomClosedOnDelete(t *testing.T) {
	env := startTestServer(t, nil)
	token := env.adminToken(t)
	seedRoom(t, env, "ROOM01", "1234", store.RoomKindText)

	ana := dialWS(t, env)
	ana.join("1234", "Ana")

	resp, _ := doJSON(t, env, "DELETE", "/api/admin/rooms/ROOM01", token, "")
	if resp.StatusCode != 200 {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}

	frame := ana.waitFor(proto.EventRoomClosed)
	var closed proto.EventRoomClosedData
	if err := json.Unmarshal(frame.Data, &closed); err != nil || closed.RoomID != "ROOM01" {
		t.Fatalf("unexpected room_closed payload %s: %v", frame.Data, err)
	}

	if env.hub.Sessions().State(ana.connID) != core.StateConnected {
		t.Fatalf("session should be unbound after room deletion")
	}
}

func TestWSDisconnectRemovesFromRoster(t *testing.T) {
	env := startTestServer(t, nil)
	seedRoom(t, env, "ROOM01", "1234", store.RoomKindText)

	ana := dialWS(t, env)
	ana.join("1234", "Ana")
	beto := dialWS(t, env)
	beto.join("1234", "Beto")

	beto.conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		room, err := env.store.GetRoom(context.Background(), "ROOM01")
		if err != nil {
			t.Fatalf("get room: %v", err)
		}
		if len(room.ConnectedNicknames) == 1 && room.ConnectedNicknames[0] == "Ana" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Beto was not removed from the roster")
}

func TestServerShutdownWaitsForDisconnects(t *testing.T) {
	env := startTestServer(t, nil)
	seedRoom(t, env, "ROOM01", "1234", store.RoomKindText)

	disabledLogger := zerolog.Nop()
	srv := NewServer(env.svc, &env.cfg, &disabledLogger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	ana := dialURL(t, wsURLOf(ts))
	ana.join("1234", "Ana")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// Disconnect has already run when Shutdown returns.
	room, err := env.store.GetRoom(context.Background(), "ROOM01")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if len(room.ConnectedNicknames) != 0 {
		t.Fatalf("roster not cleaned before shutdown returned: %v", room.ConnectedNicknames)
	}
	if state := env.hub.Sessions().State(ana.connID); state != core.StateDisconnected {
		t.Fatalf("expected disconnected, got %v", state)
	}

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	for {
		var frame wireFrame
		err := wsjson.Read(readCtx, ana.conn, &frame)
		if err == nil {
			continue
		}
		if status := websocket.CloseStatus(err); status != websocket.StatusGoingAway {
			t.Fatalf("expected going away close, got %v (%v)", status, err)
		}
		break
	}

	// Later upgrades are refused.
	if _, _, err := websocket.Dial(ctx, wsURLOf(ts), nil); err == nil {
		t.Fatalf("dial after shutdown should fail")
	}
}
