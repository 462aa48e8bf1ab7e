package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/pinchat/internal/auth"
	"github.com/vovakirdan/pinchat/internal/blob"
	"github.com/vovakirdan/pinchat/internal/config"
	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/service/rooms"
	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/memory"
	"github.com/vovakirdan/pinchat/internal/store/postgres"
	"github.com/vovakirdan/pinchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/pinchat/internal/transport/http"
)

const loginRateWindow = time.Minute

// App wires together core and transport layers.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	blobs           blob.Store
	redis           *redis.Client
	log             *zerolog.Logger
}

// OpenStore opens the repository selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return sqlite.New(cfg.Store.SQLitePath)
	case "postgres":
		return postgres.New(ctx, cfg.Store.PostgresURL)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// OpenBlobStore opens the upload backend selected by cfg.Uploads.Driver.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Uploads.Driver {
	case "disk":
		return blob.NewDiskStore(cfg.Uploads.Dir)
	case "nats":
		return blob.NewNATSStore(ctx, cfg.Uploads.NATSURL, cfg.Uploads.NATSBucket)
	default:
		return nil, fmt.Errorf("unknown uploads driver %q", cfg.Uploads.Driver)
	}
}

// JWTConfig converts the configured token settings.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
}

// New constructs the application with provided configuration.
// A store that cannot be opened does not fail startup: the server comes up
// degraded and every backend-dependent request answers with an error.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.JWT.Secret == config.DefaultJWTSecret {
		logger.Warn().Msg("using the default jwt secret, set PINCHAT_JWT_SECRET in production")
	}

	a := &App{shutdownTimeout: cfg.ShutdownTimeout, log: logger}

	var degraded error
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Store.Driver).Msg("store unavailable, starting degraded")
		degraded = err
		st = store.Unavailable(err)
	} else {
		logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")
	}
	a.store = st

	authService := auth.NewService(st, JWTConfig(cfg))

	if degraded == nil {
		// Rosters only mirror live connections, none of which survive a restart.
		if err := st.ResetRosters(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to reset rosters")
		}
		created, err := authService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("username", cfg.Admin.Username).Msg("failed to seed admin")
		case created:
			logger.Info().Str("username", cfg.Admin.Username).Msg("admin account created")
		}
	}

	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		// Uploads answer 500 until restart; chat and admin keep working.
		logger.Error().Err(err).Str("driver", cfg.Uploads.Driver).Msg("upload store unavailable, uploads disabled")
		blobs = blob.Unavailable(err)
	} else {
		logger.Info().Str("driver", cfg.Uploads.Driver).Msg("upload store initialized")
	}
	a.blobs = blobs

	limiter := a.loginLimiter(ctx, cfg)

	a.hub = core.NewHub(st, core.NewSessionTable(), logger, core.Options{
		OpTimeout:       cfg.Store.OpTimeout,
		MaxMessageBytes: cfg.MaxMessageBytes,
	})

	roomService, err := rooms.New(st, a.hub, rooms.WithOpTimeout(cfg.Store.OpTimeout))
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init rooms: %w", err)
	}

	uploader := blob.NewUploader(blobs, blob.Policy{
		MaxBytes:          cfg.Uploads.MaxBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
	})

	a.server = transporthttp.NewServer(transporthttp.Services{
		Hub:          a.hub,
		Auth:         authService,
		Rooms:        roomService,
		Uploads:      uploader,
		LoginLimiter: limiter,
		Degraded:     degraded,
	}, cfg, logger)

	return a, nil
}

// loginLimiter prefers a shared Redis window and falls back to a per-process one,
// also when Redis cannot be reached at startup.
func (a *App) loginLimiter(ctx context.Context, cfg *config.Config) transporthttp.Limiter {
	if cfg.LoginRateLimit <= 0 {
		return nil
	}
	if cfg.Redis.Addr == "" {
		return transporthttp.NewMemoryLimiter(cfg.LoginRateLimit, loginRateWindow)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		a.log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, login limiter is per process")
		return transporthttp.NewMemoryLimiter(cfg.LoginRateLimit, loginRateWindow)
	}
	a.redis = client
	a.log.Info().Str("addr", cfg.Redis.Addr).Msg("login limiter backed by redis")
	return transporthttp.NewRedisLimiter(client, cfg.LoginRateLimit, loginRateWindow, "pinchat:login:")
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
		defer cancel()

		// Waits for websocket disconnects too, so cleanup never races a roster update.
		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close upload store")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
