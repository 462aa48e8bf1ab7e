package http

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/blob"
	"github.com/vovakirdan/pinchat/internal/core"
)

// multipartOverhead is allowed on top of the file limit for form fields and boundaries.
const multipartOverhead = 1 << 20

// UploadHandlers accepts files from joined connections and serves stored blobs.
type UploadHandlers struct {
	hub     *core.Hub
	uploads *blob.Uploader
	log     *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(hub *core.Hub, uploads *blob.Uploader, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{hub: hub, uploads: uploads, log: logger}
}

// UploadResponse is returned after a file was stored and announced.
type UploadResponse struct {
	URL string `json:"url"`
}

// Upload stores a file for a joined connection and relays it to the room.
// The session and room kind are checked before any bytes are stored.
// POST /api/upload
func (h *UploadHandlers) Upload(c *gin.Context) {
	maxBytes := h.uploads.Policy().MaxBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}

	connID := c.PostForm("connection_id")
	logger := h.log.With().Str("conn_id", connID).Logger()

	if _, err := h.hub.AuthorizeFile(c.Request.Context(), connID); err != nil {
		h.writeCoreError(c, &logger, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no file provided"})
		return
	}
	if _, err := h.uploads.Check(header.Filename, header.Size); err != nil {
		h.writeBlobError(c, &logger, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		logger.Error().Err(err).Msg("open multipart file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer file.Close()

	stored, err := h.uploads.Save(c.Request.Context(), header.Filename, file)
	if err != nil {
		h.writeBlobError(c, &logger, err)
		return
	}

	ref := core.FileRef{URL: stored.URL, Name: stored.Original}
	if err := h.hub.SendFile(c.Request.Context(), connID, ref); err != nil {
		if discardErr := h.uploads.Discard(c.Request.Context(), stored.Name); discardErr != nil {
			logger.Warn().Err(discardErr).Str("blob", stored.Name).Msg("discard orphaned blob")
		}
		h.writeCoreError(c, &logger, err)
		return
	}

	logger.Info().Str("blob", stored.Name).Int64("size", stored.Size).Msg("file uploaded")
	c.JSON(http.StatusCreated, UploadResponse{URL: stored.URL})
}

// ServeFile streams a stored blob.
// GET /uploads/:name
func (h *UploadHandlers) ServeFile(c *gin.Context) {
	name := c.Param("name")

	rc, size, err := h.uploads.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		logger := h.log.With().Str("blob", name).Logger()
		h.writeBlobError(c, &logger, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, size, contentType, rc, nil)
}

func (h *UploadHandlers) writeCoreError(c *gin.Context, logger *zerolog.Logger, err error) {
	e := core.AsError(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(e, core.ErrRoomNotMultimedia):
		status = http.StatusForbidden
	case e.Class == core.ClassAuth:
		status = http.StatusUnauthorized
	case e.Class == core.ClassValidation:
		status = http.StatusBadRequest
	case e.Class == core.ClassNotFound:
		status = http.StatusNotFound
	case e.Class == core.ClassConflict:
		status = http.StatusConflict
	case e.Class == core.ClassCapacity:
		status = http.StatusRequestEntityTooLarge
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("upload failed")
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	logger.Debug().Str("code", e.Code).Msg("upload rejected")
	c.JSON(status, ErrorResponse{Error: e.Message})
}

func (h *UploadHandlers) writeBlobError(c *gin.Context, logger *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, blob.ErrEmptyName):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty file name"})
	case errors.Is(err, blob.ErrDisallowedExtension):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file type not allowed"})
	case errors.Is(err, blob.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
	case errors.Is(err, blob.ErrUnavailable):
		logger.Error().Err(err).Msg("upload store unavailable")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "backend unavailable"})
	default:
		logger.Error().Err(err).Msg("store blob")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
