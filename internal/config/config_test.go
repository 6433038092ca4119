package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// clearEnv blanks every variable Load reads so ambient settings cannot leak
// into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "DATABASE_PATH", "STORAGE", "LOG_LEVEL", "JWT_SECRET", "COOKIE_SECURE", "BCRYPT_COST", "AUTH_STRICT"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifelink.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Storage != StorageSQLite || cfg.Auth.BcryptCost != 12 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Auth.CookieSecure {
		t.Fatal("expected secure cookies by default")
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
storage: memory
auth:
  jwt_secret: from-file-but-too-short
  strict: true
rate_limit:
  burst: 2
`)
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.Storage != StorageMemory {
		t.Fatalf("expected file values, got port=%s storage=%s", cfg.Port, cfg.Storage)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Fatalf("expected env secret to win, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.CookieSecure {
		t.Fatal("expected COOKIE_SECURE=false to disable secure cookies")
	}
	if !cfg.Auth.Strict || cfg.Auth.BcryptCost != 4 {
		t.Fatalf("unexpected auth config %+v", cfg.Auth)
	}
	if cfg.RateLimit.Burst != 2 || cfg.RateLimit.Rate != 0.2 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BCRYPT_COST", "twelve")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric BCRYPT_COST")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "port: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32"},
		{"bcrypt too low", func(c *Config) { c.Auth.BcryptCost = 3 }, "bcrypt cost"},
		{"bcrypt too high", func(c *Config) { c.Auth.BcryptCost = 15 }, "bcrypt cost"},
		{"unknown storage", func(c *Config) { c.Storage = "redis" }, "unknown storage"},
		{"sqlite without path", func(c *Config) { c.DatabasePath = "" }, "database path"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	level, err := cfg.SlogLevel()
	if err != nil {
		t.Fatalf("SlogLevel: %v", err)
	}
	if level != slog.LevelDebug {
		t.Fatalf("expected debug, got %v", level)
	}
}
