package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/proto"
	"github.com/vovakirdan/pinchat/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid join_room payload"}
		}
		return &core.Command{
			Kind:     core.CommandJoinRoom,
			Pin:      join.Pin,
			Nickname: join.Nickname,
		}, nil
	case proto.InboundTypeSend:
		var msg proto.SendData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid send_message payload"}
		}
		return &core.Command{
			Kind: core.CommandSendMessage,
			Body: msg.Body,
		}, nil
	case proto.InboundTypeLeave:
		return &core.Command{Kind: core.CommandLeaveRoom}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

// decodeData treats a missing payload as an empty object.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

func messageToProto(msg *store.Message) proto.Message {
	return proto.Message{
		ID:        msg.ID,
		Author:    msg.Author,
		Kind:      string(msg.Kind),
		Body:      msg.Body,
		FileURL:   msg.FileURL,
		FileName:  msg.FileName,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		if event.Message == nil {
			break
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data: proto.EventNewMessageData{
				RoomID:  event.RoomID,
				Message: messageToProto(event.Message),
			},
		}
	case core.EventRoster:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoster,
			Data: proto.EventRosterData{
				RoomID: event.RoomID,
				Roster: nonNil(event.Roster),
			},
		}
	case core.EventHistory:
		history := make([]proto.Message, 0, len(event.History))
		for i := range event.History {
			history = append(history, messageToProto(&event.History[i]))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatHistory,
			Data: proto.EventChatHistoryData{
				RoomID:   event.RoomID,
				History:  history,
				RoomKind: string(event.RoomKind),
				Roster:   nonNil(event.Roster),
			},
		}
	case core.EventRoomClosed:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomClosed,
			Data:  proto.EventRoomClosedData{RoomID: event.RoomID},
		}
	case core.EventJoinError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Event: proto.EventJoinError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventJoinError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	}
	return proto.Outbound{Type: proto.OutboundTypeEvent}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
