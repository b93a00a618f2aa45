package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "gateway.yaml"))
	if err == nil {
		t.Fatal("explicit missing path did not error")
	}

	cfg = Default()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Errorf("CORS.AllowedOrigins = %v, want nil", *cfg.CORS.AllowedOrigins)
	}
	if !cfg.CORS.AllowCredentials {
		t.Error("CORS.AllowCredentials = false, want true")
	}
	if cfg.Policy.Source != "env" {
		t.Errorf("Policy.Source = %q, want env when no origins configured", cfg.Policy.Source)
	}
	if cfg.Policy.EnvKey != "CORS_ALLOWED_ORIGINS" {
		t.Errorf("Policy.EnvKey = %q", cfg.Policy.EnvKey)
	}
	if cfg.Audit.BufferSize != 200 {
		t.Errorf("Audit.BufferSize = %d, want 200", cfg.Audit.BufferSize)
	}
}

func TestYAMLOverlay(t *testing.T) {
	path := writeConfigFile(t, strings.TrimSpace(`
server:
  port: 9090
  read_timeout: 5s
cors:
  allowed_origins: "https://app.example.com, https://admin.example.com"
  allow_credentials: false
logging:
  level: DEBUG
`))

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want untouched default 15s", cfg.Server.WriteTimeout)
	}
	if cfg.CORS.AllowedOrigins == nil {
		t.Fatal("CORS.AllowedOrigins = nil, want the configured value")
	}
	if *cfg.CORS.AllowedOrigins != "https://app.example.com, https://admin.example.com" {
		t.Errorf("CORS.AllowedOrigins = %q", *cfg.CORS.AllowedOrigins)
	}
	if cfg.CORS.AllowCredentials {
		t.Error("CORS.AllowCredentials = true, want false")
	}
	if cfg.Policy.Source != "static" {
		t.Errorf("Policy.Source = %q, want static when origins are in the file", cfg.Policy.Source)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want normalized debug", cfg.Logging.Level)
	}
}

func TestEmptyOriginsIsExplicit(t *testing.T) {
	path := writeConfigFile(t, "cors:\n  allowed_origins: \"\"\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.CORS.AllowedOrigins == nil {
		t.Fatal("AllowedOrigins = nil, want pointer to empty string")
	}
	if *cfg.CORS.AllowedOrigins != "" {
		t.Errorf("AllowedOrigins = %q, want empty", *cfg.CORS.AllowedOrigins)
	}
	if cfg.Policy.Source != "static" {
		t.Errorf("Policy.Source = %q, want static", cfg.Policy.Source)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9090\n")

	t.Setenv("GATEWAY_PORT", "7070")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RATE_LIMIT_RPS", "10")
	t.Setenv("POLICY_REFRESH_INTERVAL", "30s")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.RateLimit.RequestsPerSecond != 10 {
		t.Errorf("RateLimit.RequestsPerSecond = %d, want 10", cfg.RateLimit.RequestsPerSecond)
	}
	if cfg.Policy.RefreshInterval != 30*time.Second {
		t.Errorf("Policy.RefreshInterval = %v, want 30s", cfg.Policy.RefreshInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown source", func(c *Config) { c.Policy.Source = "consul" }, true},
		{"file source without path", func(c *Config) { c.Policy.Source = "file" }, true},
		{"file source with path", func(c *Config) { c.Policy.Source = "file"; c.Policy.File = "/etc/origins" }, false},
		{"redis source without addr", func(c *Config) { c.Policy.Source = "redis" }, true},
		{"redis source complete", func(c *Config) {
			c.Policy.Source = "redis"
			c.Policy.RedisAddr = "localhost:6379"
		}, false},
		{"rate limit zero rps", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, true},
		{"rate limit disabled ignores rps", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.RequestsPerSecond = 0
		}, false},
		{"negative retention", func(c *Config) { c.Audit.RetentionDays = -1 }, true},
		{"user without hash", func(c *Config) {
			c.Auth.Users = []AdminUser{{Username: "ops", Role: "admin"}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.normalize()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceResolutionRespectsExplicitSetting(t *testing.T) {
	path := writeConfigFile(t, strings.TrimSpace(`
cors:
  allowed_origins: "https://app.example.com"
policy:
  source: env
`))

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Policy.Source != "env" {
		t.Errorf("Policy.Source = %q, want explicit env to win", cfg.Policy.Source)
	}
}

func TestMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a map\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("malformed YAML did not error")
	}
}
