package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pinchat/internal/proto"
)

func frameOf(t *testing.T, event string, data any) chatFrame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return chatFrame{Type: proto.OutboundTypeEvent, Event: event, Data: raw}
}

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame chatFrame
		want  string
	}{
		{
			name:  "connected is silent",
			frame: frameOf(t, proto.EventConnected, proto.EventConnectedData{ConnectionID: "abc"}),
			want:  "",
		},
		{
			name: "history",
			frame: frameOf(t, proto.EventChatHistory, proto.EventChatHistoryData{
				RoomID:   "ROOM01",
				RoomKind: "Text",
				Roster:   []string{"Ana", "Beto"},
				History:  []proto.Message{{Author: "Ana", Kind: "text", Body: "hola"}},
			}),
			want: "joined room ROOM01 (Text), online: Ana, Beto\nAna: hola",
		},
		{
			name:  "system message",
			frame: frameOf(t, proto.EventNewMessage, proto.EventNewMessageData{Message: proto.Message{Author: "Sistema", Kind: "system", Body: "Beto se ha unido a la sala."}}),
			want:  "* Beto se ha unido a la sala.",
		},
		{
			name:  "file message",
			frame: frameOf(t, proto.EventNewMessage, proto.EventNewMessageData{Message: proto.Message{Author: "Ana", Kind: "file", FileName: "a.png", FileURL: "/uploads/x_a.png"}}),
			want:  "Ana: a.png (/uploads/x_a.png)",
		},
		{
			name:  "roster",
			frame: frameOf(t, proto.EventRoster, proto.EventRosterData{Roster: []string{"Ana"}}),
			want:  "online: Ana",
		},
		{
			name:  "join error",
			frame: chatFrame{Type: proto.OutboundTypeError, Event: proto.EventJoinError, Error: &proto.Error{Code: "invalid_pin", Msg: "PIN de sala incorrecto."}},
			want:  "error [invalid_pin]: PIN de sala incorrecto.",
		},
		{
			name:  "room closed",
			frame: frameOf(t, proto.EventRoomClosed, proto.EventRoomClosedData{RoomID: "ROOM01"}),
			want:  "the room was closed by an administrator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFrame(tt.frame))
		})
	}
}
