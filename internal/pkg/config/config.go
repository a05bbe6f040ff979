// Package config loads process settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// Client configures the session client and the sessionctl CLI.
type Client struct {
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	API     APIConfig
	Session SessionConfig
	Redis   RedisConfig

	CacheStaleAfter time.Duration `env:"CACHE_STALE_AFTER, default=5m"`
}

type APIConfig struct {
	URL           string        `env:"API_URL,            default=http://localhost:8080/api"`
	Timeout       time.Duration `env:"API_TIMEOUT,        default=15s"`
	SessionCookie string        `env:"API_SESSION_COOKIE, default=connect.sid"`
}

type SessionConfig struct {
	Backend  string        `env:"SESSION_BACKEND,   default=file"`
	Path     string        `env:"SESSION_PATH"`
	Secret   string        `env:"SESSION_SECRET"`
	DeviceID string        `env:"SESSION_DEVICE_ID, default=default"`
	TTL      time.Duration `env:"SESSION_TTL,       default=0s"`
}

// Server configures the reference session API.
type Server struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionCookie string        `env:"SESSION_COOKIE, default=connect.sid"`
	SessionTTL    time.Duration `env:"SESSION_TTL,    default=24h"`
	ResetTTL      time.Duration `env:"RESET_TTL,      default=1h"`
	ResetLinkBase string        `env:"RESET_LINK_BASE, default=http://localhost:8081/reset-password"`

	Storage       string `env:"STORAGE,        default=memory"`
	Sessions      string `env:"SESSIONS,       default=memory"`
	NotifyWorkers int    `env:"NOTIFY_WORKERS, default=4"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=tlobni"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// LoadClient reads client settings through l. A nil l reads the OS environment.
func LoadClient(ctx context.Context, l envconfig.Lookuper) (*Client, error) {
	var cfg Client
	if err := process(ctx, &cfg, l); err != nil {
		return nil, err
	}

	switch cfg.Session.Backend {
	case BackendFile:
		if cfg.Session.Path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("config: resolve SESSION_PATH: %w", err)
			}
			cfg.Session.Path = filepath.Join(home, ".tlobni", "session")
		}
		if cfg.Session.Secret == "" {
			return nil, fmt.Errorf("config: SESSION_SECRET is required for the %q session backend", BackendFile)
		}
	case BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("config: unknown SESSION_BACKEND %q", cfg.Session.Backend)
	}
	return &cfg, nil
}

// LoadServer reads server settings through l. A nil l reads the OS environment.
func LoadServer(ctx context.Context, l envconfig.Lookuper) (*Server, error) {
	var cfg Server
	if err := process(ctx, &cfg, l); err != nil {
		return nil, err
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("config: SESSION_SECRET is required")
	}
	if cfg.Storage != BackendMemory && cfg.Storage != BackendMongo {
		return nil, fmt.Errorf("config: unknown STORAGE %q", cfg.Storage)
	}
	if cfg.Sessions != BackendMemory && cfg.Sessions != BackendRedis {
		return nil, fmt.Errorf("config: unknown SESSIONS %q", cfg.Sessions)
	}
	return &cfg, nil
}

func process(ctx context.Context, cfg any, l envconfig.Lookuper) error {
	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: l}); err != nil {
		return fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return nil
}
