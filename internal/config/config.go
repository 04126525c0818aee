package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Bluesky BlueskyConfig
	Health  HealthConfig
	Storage StorageConfig
	Logging LogConfig
	CORS    CORSConfig
}

// ServerConfig holds HTTP server configuration. The server binds to
// loopback by default: it is a local bridge for a browser UI, not a
// public endpoint.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8377"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// BlueskyConfig holds the remote service configuration.
type BlueskyConfig struct {
	ServiceURL string        `envconfig:"BLUESKY_SERVICE_URL" default:"https://bsky.social/xrpc"`
	Timeout    time.Duration `envconfig:"BLUESKY_TIMEOUT" default:"30s"`
}

// HealthConfig holds session health monitor configuration.
type HealthConfig struct {
	Interval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"30m"`
	Enabled  bool          `envconfig:"HEALTH_CHECK_ENABLED" default:"true"`
}

// StorageConfig holds durable storage configuration. An empty path makes
// the daemon fall back to a per-user default under the home directory.
type StorageConfig struct {
	Path string `envconfig:"STORAGE_PATH" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// CORSConfig holds the browser origin allowlist.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SKYBRIDGE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8377",
			Host: "127.0.0.1",
		},
		Bluesky: BlueskyConfig{
			ServiceURL: "https://bsky.social/xrpc",
			Timeout:    30 * time.Second,
		},
		Health: HealthConfig{
			Interval: 30 * time.Minute,
			Enabled:  true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}
