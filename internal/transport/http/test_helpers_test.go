package http

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pinchat/internal/auth"
	"github.com/vovakirdan/pinchat/internal/blob"
	"github.com/vovakirdan/pinchat/internal/config"
	"github.com/vovakirdan/pinchat/internal/core"
	"github.com/vovakirdan/pinchat/internal/service/rooms"
	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server    *httptest.Server
	store     store.Store
	hub       *core.Hub
	auth      *auth.Service
	uploadDir string
	svc       Services
	cfg       config.Config
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      auth.DefaultTokenTTL,
	}

	return auth.NewService(st, jwtConfig)
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.WSRateLimit = 0
	return cfg
}

// startTestServer wires the full router against an in-memory store.
func startTestServer(t *testing.T, mutate func(*Services)) *testEnv {
	t.Helper()

	st := createTestStore(t)
	disabledLogger := zerolog.Nop()
	cfg := testConfig()

	hub := core.NewHub(st, core.NewSessionTable(), &disabledLogger, core.Options{})
	authService := createTestAuthService(t, st)
	roomService, err := rooms.New(st, hub)
	if err != nil {
		t.Fatalf("rooms service: %v", err)
	}

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	disk, err := blob.NewDiskStore(uploadDir)
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	svc := Services{
		Hub:     hub,
		Auth:    authService,
		Rooms:   roomService,
		Uploads: blob.NewUploader(disk, blob.DefaultPolicy()),
	}
	if mutate != nil {
		mutate(&svc)
	}

	ts := httptest.NewServer(NewRouter(svc, &cfg, &disabledLogger))
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, hub: hub, auth: authService, uploadDir: uploadDir, svc: svc, cfg: cfg}
}

// adminToken seeds an admin and logs it in.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	if err := e.auth.SetAdmin(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, err := e.auth.Login(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	return token
}

func (e *testEnv) wsURL() string {
	return wsURLOf(e.server)
}

func wsURLOf(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}
