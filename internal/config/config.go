// Package config loads and validates the towerchat server configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the towerchat server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Hub    HubConfig    `yaml:"hub"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP/WebSocket listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// WSPath is the route the WebSocket endpoint is mounted on.
	WSPath string `yaml:"ws_path"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures credential verification.
type AuthConfig struct {
	// JWTSecret is the HS256 shared secret for bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`
}

// StoreConfig selects and configures the membership store backend.
type StoreConfig struct {
	// Driver is one of "postgres", "sqlite", or "memory".
	Driver string `yaml:"driver"`

	// DSN is the postgres connection string (postgres driver only).
	DSN string `yaml:"dsn"`

	// Path is the database file path (sqlite driver only).
	Path string `yaml:"path"`
}

// HubConfig tunes the real-time hub.
type HubConfig struct {
	// SendBuffer is the per-connection outbound frame buffer. When full,
	// further frames for that connection are dropped (at-most-once delivery).
	SendBuffer int `yaml:"send_buffer"`

	// MaxPayloadBytes limits inbound frame size.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`

	// TypingTTL, when positive, sweeps stale typing entries that the client
	// never cleared. Zero disables the sweep.
	TypingTTL time.Duration `yaml:"typing_ttl"`

	// AuthTimeout, when positive, closes connections that have not
	// authenticated within the window. Zero disables the deadline.
	AuthTimeout time.Duration `yaml:"auth_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			WSPath:          "/ws",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "towerchat.db",
		},
		Hub: HubConfig{
			SendBuffer:      64,
			MaxPayloadBytes: 1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills zero values after parsing.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = def.Server.WSPath
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Store.Driver == "" {
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Hub.SendBuffer <= 0 {
		c.Hub.SendBuffer = def.Hub.SendBuffer
	}
	if c.Hub.MaxPayloadBytes <= 0 {
		c.Hub.MaxPayloadBytes = def.Hub.MaxPayloadBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks the configuration for unusable combinations.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
