package core

import (
	"fmt"
	"time"

	"github.com/vovakirdan/pinchat/internal/store"
)

// SystemAuthor is the author shown on join/leave notices.
const SystemAuthor = "Sistema"

// FileRef points at a blob the upload surface already stored.
type FileRef struct {
	URL  string
	Name string
}

func systemMessage(roomID, body string) *store.Message {
	return &store.Message{
		RoomID:    roomID,
		Author:    SystemAuthor,
		Kind:      store.MessageKindSystem,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

func joinedMessage(roomID, nickname string) *store.Message {
	return systemMessage(roomID, fmt.Sprintf("%s se ha unido a la sala.", nickname))
}

func leftMessage(roomID, nickname string) *store.Message {
	return systemMessage(roomID, fmt.Sprintf("%s ha abandonado la sala.", nickname))
}

func fileMessage(sess Session, ref FileRef) *store.Message {
	return &store.Message{
		RoomID:    sess.RoomID,
		Author:    sess.Nickname,
		Kind:      store.MessageKindFile,
		Body:      fmt.Sprintf("subió el archivo: %s", ref.Name),
		FileURL:   ref.URL,
		FileName:  ref.Name,
		CreatedAt: time.Now().UTC(),
	}
}
