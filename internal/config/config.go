// Package config loads gateway configuration from defaults, an optional
// YAML file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// DefaultPath is consulted when no config file is given explicitly. A
// missing file at this path is not an error.
const DefaultPath = "config/gateway.yaml"

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	CORS      CORSConfig      `yaml:"cors"`
	Policy    PolicyConfig    `yaml:"policy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"GATEWAY_HOST"`
	Port            int           `yaml:"port" env:"GATEWAY_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"GATEWAY_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"GATEWAY_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"GATEWAY_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"GATEWAY_SHUTDOWN_TIMEOUT"`
}

// Addr returns the host:port the server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CORSConfig struct {
	// AllowedOrigins is the raw comma-separated allowlist from the YAML
	// file. nil means the value was never configured, so policy defaults
	// apply; an explicitly empty string denies all cross-origin access.
	// The CORS_ALLOWED_ORIGINS environment variable is read by the policy
	// source, not here, to keep set-but-empty distinguishable from unset.
	AllowedOrigins   *string `yaml:"allowed_origins"`
	AllowCredentials bool    `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	AllowedMethods   string  `yaml:"allowed_methods" env:"CORS_ALLOWED_METHODS"`
	AllowedHeaders   string  `yaml:"allowed_headers" env:"CORS_ALLOWED_HEADERS"`
	ExposedHeaders   string  `yaml:"exposed_headers" env:"CORS_EXPOSED_HEADERS"`
	MaxAge           int     `yaml:"max_age" env:"CORS_MAX_AGE"`
}

type PolicyConfig struct {
	// Source selects where the allowlist is loaded from: static (the YAML
	// value above), env, file or redis. When empty it resolves to static
	// if allowed_origins is present in the YAML file, env otherwise.
	Source          string        `yaml:"source" env:"POLICY_SOURCE"`
	EnvKey          string        `yaml:"env_key" env:"POLICY_ENV_KEY"`
	File            string        `yaml:"file" env:"POLICY_FILE"`
	RedisAddr       string        `yaml:"redis_addr" env:"POLICY_REDIS_ADDR"`
	RedisPassword   string        `yaml:"redis_password" env:"POLICY_REDIS_PASSWORD"`
	RedisDB         int           `yaml:"redis_db" env:"POLICY_REDIS_DB"`
	RedisKey        string        `yaml:"redis_key" env:"POLICY_REDIS_KEY"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"POLICY_REFRESH_INTERVAL"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond int  `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int  `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled" env:"AUTH_ENABLED"`
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL"`
	Users     []AdminUser   `yaml:"users"`
}

// AdminUser is an operator account for the admin API. PasswordHash is a
// bcrypt hash, never a plaintext password.
type AdminUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

type AuditConfig struct {
	BufferSize    int    `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE"`
	FilePath      string `yaml:"file_path" env:"AUDIT_FILE_PATH"`
	DatabaseURL   string `yaml:"database_url" env:"DATABASE_URL"`
	RetentionDays int    `yaml:"retention_days" env:"AUDIT_RETENTION_DAYS"`
	PruneSchedule string `yaml:"prune_schedule" env:"AUDIT_PRUNE_SCHEDULE"`
	RecordAllowed bool   `yaml:"record_allowed" env:"AUDIT_RECORD_ALLOWED"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			AllowCredentials: true,
			AllowedMethods:   "GET, POST, PUT, DELETE, OPTIONS",
			AllowedHeaders:   "Content-Type, Authorization, X-API-Key, X-Trace-ID",
			ExposedHeaders:   "X-Trace-ID",
			MaxAge:           3600,
		},
		Policy: PolicyConfig{
			EnvKey:   "CORS_ALLOWED_ORIGINS",
			RedisKey: "origin_gateway:allowed_origins",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Auth: AuthConfig{
			Enabled:  true,
			TokenTTL: 24 * time.Hour,
		},
		Audit: AuditConfig{
			BufferSize:    200,
			RetentionDays: 30,
			PruneSchedule: "0 3 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from GATEWAY_CONFIG or the default path.
func Load() (*Config, error) {
	return LoadFromPath(os.Getenv("GATEWAY_CONFIG"))
}

// LoadFromPath builds the configuration: defaults, then the YAML file at
// path, then environment overrides. An empty path falls back to
// DefaultPath, where a missing file is tolerated; an explicit path must
// exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	optional := false
	if path == "" {
		path = DefaultPath
		optional = true
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		// No file, defaults plus environment apply.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment overrides: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Policy.Source = strings.ToLower(strings.TrimSpace(c.Policy.Source))
	if c.Policy.Source == "" {
		if c.CORS.AllowedOrigins != nil {
			c.Policy.Source = "static"
		} else {
			c.Policy.Source = "env"
		}
	}
	if c.Policy.EnvKey == "" {
		c.Policy.EnvKey = "CORS_ALLOWED_ORIGINS"
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 200
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Policy.Source {
	case "static", "env":
	case "file":
		if c.Policy.File == "" {
			return fmt.Errorf("policy.source is file but policy.file is empty")
		}
	case "redis":
		if c.Policy.RedisAddr == "" {
			return fmt.Errorf("policy.source is redis but policy.redis_addr is empty")
		}
		if c.Policy.RedisKey == "" {
			return fmt.Errorf("policy.source is redis but policy.redis_key is empty")
		}
	default:
		return fmt.Errorf("unknown policy.source %q (want static, env, file or redis)", c.Policy.Source)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive, got %d", c.RateLimit.RequestsPerSecond)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive, got %d", c.RateLimit.Burst)
		}
	}

	if c.Audit.BufferSize < 0 {
		return fmt.Errorf("audit.buffer_size must not be negative, got %d", c.Audit.BufferSize)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", c.Audit.RetentionDays)
	}

	for i, user := range c.Auth.Users {
		if user.Username == "" {
			return fmt.Errorf("auth.users[%d].username is empty", i)
		}
		if user.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d].password_hash is empty", i)
		}
	}

	return nil
}
