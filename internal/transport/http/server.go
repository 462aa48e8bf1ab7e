package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/auth"
	"github.com/vovakirdan/pinchat/internal/blob"
	"github.com/vovakirdan/pinchat/internal/config"
	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/service/rooms"
)

// Services are the collaborators the HTTP surface dispatches to.
type Services struct {
	Hub     *core.Hub
	Auth    *auth.Service
	Rooms   *rooms.Service
	Uploads *blob.Uploader
	// LoginLimiter throttles admin logins; nil disables throttling.
	LoginLimiter Limiter
	// Degraded is set when the store could not be opened at startup.
	Degraded error
}

// Server is the HTTP server together with the websocket connections it hijacked.
type Server struct {
	*stdhttp.Server
	ws *WSHandler
}

// NewServer builds the HTTP server with every route.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *Server {
	ws := NewWSHandler(svc.Hub, cfg, logger)
	return &Server{
		Server: &stdhttp.Server{
			Addr:              cfg.Addr,
			Handler:           newRouter(svc, cfg, logger, ws),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ws: ws,
	}
}

// Shutdown stops accepting requests, then closes live websocket connections
// and waits for their disconnects, all bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.Server.Shutdown(ctx)
	wsErr := s.ws.Shutdown(ctx)
	return errors.Join(httpErr, wsErr)
}

// NewRouter builds the gin engine behind NewServer.
func NewRouter(svc Services, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	return newRouter(svc, cfg, logger, NewWSHandler(svc.Hub, cfg, logger))
}

func newRouter(svc Services, cfg *config.Config, logger *zerolog.Logger, wsHandler *WSHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware())

	router.GET("/health", healthHandler)

	router.GET("/ws", gin.WrapH(wsHandler))

	uploadHandlers := NewUploadHandlers(svc.Hub, svc.Uploads, logger)
	router.GET("/uploads/:name", uploadHandlers.ServeFile)

	api := router.Group("/api")
	api.Use(BackendGuard(svc.Degraded, logger))
	{
		api.POST("/upload", uploadHandlers.Upload)

		authHandlers := NewAuthHandlers(svc.Auth, svc.LoginLimiter, logger)
		api.POST("/admin/login", authHandlers.Login)

		roomHandlers := NewRoomHandlers(svc.Rooms, logger)
		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(svc.Auth, logger))
		{
			admin.POST("/rooms", roomHandlers.CreateRoom)
			admin.GET("/rooms", roomHandlers.ListRooms)
			admin.GET("/rooms/:id", roomHandlers.GetRoom)
			admin.DELETE("/rooms/:id", roomHandlers.DeleteRoom)
		}
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
