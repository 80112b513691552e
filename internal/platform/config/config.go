package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// App sources.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
	SourceSQLite   = "sqlite"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Host      string `env:"HOST"`
	Port      string `env:"PORT" default:"6001"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	AppSource        string `env:"APP_SOURCE" default:"static"`
	AppsFile         string `env:"APPS_FILE"`
	DefaultAppID     string `env:"DEFAULT_APP_ID" default:"app-id"`
	DefaultAppKey    string `env:"DEFAULT_APP_KEY" default:"app-key"`
	DefaultAppSecret string `env:"DEFAULT_APP_SECRET" default:"app-secret"`
	DatabaseURL      string `env:"DATABASE_URL"`
	RedisURL         string `env:"REDIS_URL"`
	SQLitePath       string `env:"SQLITE_PATH"`

	ActivityTimeout      time.Duration `env:"ACTIVITY_TIMEOUT" default:"120s"`
	NamespaceMailboxSize int           `env:"NAMESPACE_MAILBOX_SIZE" default:"1024"`
	ClientSendBuffer     int           `env:"CLIENT_SEND_BUFFER" default:"64"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"0"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"20"`

	MaxConnections      int64   `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Origins returns the allowed WebSocket origins. Empty means any origin.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	switch cfg.AppSource {
	case SourceStatic:
		if cfg.AppsFile == "" && (cfg.DefaultAppID == "" || cfg.DefaultAppKey == "") {
			return errors.New("DEFAULT_APP_ID and DEFAULT_APP_KEY are required when APPS_FILE is not set")
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for APP_SOURCE=postgres")
		}
	case SourceRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required for APP_SOURCE=redis")
		}
	case SourceSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for APP_SOURCE=sqlite")
		}
	default:
		return fmt.Errorf("APP_SOURCE must be one of static, postgres, redis, sqlite, got %q", cfg.AppSource)
	}

	if cfg.ActivityTimeout < time.Second {
		return fmt.Errorf("ACTIVITY_TIMEOUT must be at least 1s, got %s", cfg.ActivityTimeout)
	}
	if cfg.NamespaceMailboxSize < 1 {
		return fmt.Errorf("NAMESPACE_MAILBOX_SIZE must be positive, got %d", cfg.NamespaceMailboxSize)
	}
	if cfg.ClientSendBuffer < 1 {
		return fmt.Errorf("CLIENT_SEND_BUFFER must be positive, got %d", cfg.ClientSendBuffer)
	}
	if cfg.APIRateLimit < 0 {
		return errors.New("API_RATE_LIMIT must not be negative")
	}
	if cfg.APIRateLimit > 0 && cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_BURST must be positive when API_RATE_LIMIT is set")
	}
	if cfg.MaxConnections < 0 || cfg.MaxConnectionsPerIP < 0 || cfg.ConnectionRate < 0 {
		return errors.New("connection limits must not be negative")
	}

	return nil
}
