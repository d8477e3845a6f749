package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("auth:\n  jwt_secret: s3cret\n"))
	if err != nil {
		t.Fatalf("Parse = %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.WSPath != "/ws" {
		t.Fatalf("server defaults = %+v", cfg.Server)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path != "towerchat.db" {
		t.Fatalf("store defaults = %+v", cfg.Store)
	}
	if cfg.Hub.SendBuffer != 64 || cfg.Hub.MaxPayloadBytes != 1<<20 {
		t.Fatalf("hub defaults = %+v", cfg.Hub)
	}
	if cfg.Hub.TypingTTL != 0 || cfg.Hub.AuthTimeout != 0 {
		t.Fatalf("hardening options enabled by default: %+v", cfg.Hub)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
}

func TestParse_FullConfig(t *testing.T) {
	raw := `
server:
  addr: ":9090"
  ws_path: /chat
  shutdown_timeout: 5s
auth:
  jwt_secret: s3cret
store:
  driver: postgres
  dsn: postgres://localhost/towerchat
hub:
  send_buffer: 128
  typing_ttl: 10s
  auth_timeout: 30s
log:
  level: debug
  format: json
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse = %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Hub.SendBuffer != 128 || cfg.Hub.TypingTTL != 10*time.Second || cfg.Hub.AuthTimeout != 30*time.Second {
		t.Fatalf("hub = %+v", cfg.Hub)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")
	cfg, err := Parse([]byte("auth:\n  jwt_secret: ${TEST_JWT_SECRET}\n"))
	if err != nil {
		t.Fatalf("Parse = %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("auth:\n  jwt_secret: s\nserver:\n  adress: ':8080'\n"))
	if err == nil {
		t.Fatal("Parse accepted a misspelled field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Store.Driver = "postgres"; c.Store.DSN = "" },
			wantErr: "store.dsn",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "oracle" },
			wantErr: "store driver",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "s3cret"
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
