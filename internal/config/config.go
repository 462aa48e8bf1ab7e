package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes   int           `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// WSRateLimit caps inbound frames per connection per minute; 0 disables it.
	WSRateLimit      int      `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`
	WSOriginPatterns []string `mapstructure:"ws_origin_patterns" yaml:"ws_origin_patterns"`
	// LoginRateLimit caps admin login attempts per client IP per minute; 0 disables it.
	LoginRateLimit int `mapstructure:"login_rate_limit" yaml:"login_rate_limit"`

	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Uploads UploadsConfig `mapstructure:"uploads" yaml:"uploads"`
	JWT     JWTConfig     `mapstructure:"jwt" yaml:"jwt"`
	Admin   AdminConfig   `mapstructure:"admin" yaml:"admin"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// StoreConfig selects the room repository backend.
type StoreConfig struct {
	Driver      string        `mapstructure:"driver" yaml:"driver"` // sqlite, postgres or memory
	SQLitePath  string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string        `mapstructure:"postgres_url" yaml:"postgres_url"`
	OpTimeout   time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
}

// UploadsConfig configures the blob store and upload policy.
type UploadsConfig struct {
	Driver            string   `mapstructure:"driver" yaml:"driver"` // disk or nats
	Dir               string   `mapstructure:"dir" yaml:"dir"`
	NATSURL           string   `mapstructure:"nats_url" yaml:"nats_url"`
	NATSBucket        string   `mapstructure:"nats_bucket" yaml:"nats_bucket"`
	MaxBytes          int64    `mapstructure:"max_bytes" yaml:"max_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
}

// JWTConfig configures admin tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// AdminConfig is the account seeded at startup when missing.
type AdminConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// RedisConfig enables the shared login limiter when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "change-me-pinchat-secret"

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":5001",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   4096,
		WSRateLimit:       120,
		WSOriginPatterns:  []string{},
		LoginRateLimit:    10,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "pinchat.db",
			OpTimeout:  5 * time.Second,
		},
		Uploads: UploadsConfig{
			Driver:            "disk",
			Dir:               "uploads",
			NATSBucket:        "pinchat-uploads",
			MaxBytes:          10 << 20,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "pdf", "txt"},
		},
		JWT: JWTConfig{
			Secret:   DefaultJWTSecret,
			Issuer:   "pinchat",
			Audience: "pinchat-admin",
			TTL:      8 * time.Hour,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the fields exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want sqlite, postgres or memory", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.PostgresURL == "" {
		errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
	}
	switch c.Uploads.Driver {
	case "disk", "nats":
	default:
		errs = append(errs, fmt.Errorf("uploads.driver %q: want disk or nats", c.Uploads.Driver))
	}
	if c.Uploads.Driver == "nats" && c.Uploads.NATSURL == "" {
		errs = append(errs, errors.New("uploads.nats_url is required for the nats driver"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret must not be empty"))
	}
	return errors.Join(errs...)
}
