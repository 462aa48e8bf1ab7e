package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/proto"
	"github.com/vovakirdan/pinchat/internal/service/rooms"
	"github.com/vovakirdan/pinchat/internal/store"
)

// RoomHandlers provides HTTP handlers for room administration.
type RoomHandlers struct {
	rooms *rooms.Service
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(roomService *rooms.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms: roomService,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// CreateRoomResponse is returned after a room was created.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
	Pin    string `json:"pin"`
	Kind   string `json:"kind"`
}

// RoomSummary represents a room in list responses.
type RoomSummary struct {
	RoomID             string   `json:"room_id"`
	Pin                string   `json:"pin"`
	Kind               string   `json:"kind"`
	ConnectedNicknames []string `json:"connected_nicknames"`
	CreatedAt          string   `json:"created_at"`
}

// RoomDetail is a room together with its message log.
type RoomDetail struct {
	RoomSummary
	Messages []proto.Message `json:"messages"`
}

func summaryFromRoom(room *store.Room) RoomSummary {
	nicknames := room.ConnectedNicknames
	if nicknames == nil {
		nicknames = []string{}
	}
	return RoomSummary{
		RoomID:             room.ID,
		Pin:                room.Pin,
		Kind:               string(room.Kind),
		ConnectedNicknames: nicknames,
		CreatedAt:          room.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateRoom handles room creation.
// POST /api/admin/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), store.RoomKind(req.Kind))
	if err != nil {
		if errors.Is(err, rooms.ErrInvalidKind) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("kind", req.Kind).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Str("room_id", room.ID).
		Str("kind", string(room.Kind)).
		Str("admin", c.GetString(ContextKeyAdmin)).
		Msg("room created")
	c.JSON(http.StatusCreated, CreateRoomResponse{
		RoomID: room.ID,
		Pin:    room.Pin,
		Kind:   string(room.Kind),
	})
}

// ListRooms handles listing every room without messages.
// GET /api/admin/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	list, err := h.rooms.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomSummary, 0, len(list))
	for _, room := range list {
		response = append(response, summaryFromRoom(room))
	}

	h.log.Debug().Int("room_count", len(list)).Msg("rooms listed")
	c.JSON(http.StatusOK, response)
}

// GetRoom returns a room with its full message log.
// GET /api/admin/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")

	room, err := h.rooms.Detail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages := make([]proto.Message, 0, len(room.Messages))
	for i := range room.Messages {
		messages = append(messages, messageToProto(&room.Messages[i]))
	}

	c.JSON(http.StatusOK, RoomDetail{
		RoomSummary: summaryFromRoom(room),
		Messages:    messages,
	})
}

// DeleteRoom removes a room and disconnects its members from it.
// DELETE /api/admin/rooms/:id
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	id := c.Param("id")

	if err := h.rooms.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to delete room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_id", id).Str("admin", c.GetString(ContextKeyAdmin)).Msg("room deleted")
	c.JSON(http.StatusOK, MessageResponse{Message: "room deleted"})
}
