package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultJWTSecret = "default_secret_key"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Session  SessionConfig
	Redis    RedisConfig
	Sentry   SentryConfig
}

type ServerConfig struct {
	Port            string        `env:"APP_PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig selects the SQL backend. Driver is "postgres" or "sqlite";
// Path is only used by sqlite.
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"odkbuild"`
	SSLMode  string `env:"DB_SSL_MODE" envDefault:"disable"`
	Path     string `env:"DB_PATH" envDefault:"odkbuild.db"`
}

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET" envDefault:"default_secret_key"`
	Expiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
}

// SessionConfig controls where sessions live and how the session cookie is set.
type SessionConfig struct {
	Store         string `env:"SESSION_STORE" envDefault:"memory"`
	CookieName    string `env:"SESSION_COOKIE_NAME" envDefault:"auth_token"`
	CookieDomain  string `env:"SESSION_COOKIE_DOMAIN"`
	CookieSecure  bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	PruneSchedule string `env:"SESSION_PRUNE_SCHEDULE" envDefault:"@every 5m"`
}

// RedisConfig is used when SESSION_STORE=redis.
type RedisConfig struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Load reads the configuration from the environment.
// A .env file, if any, must be loaded by the caller beforehand.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot work at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: unknown DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Session.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("config: unknown SESSION_STORE %q", c.Session.Store))
	}

	if c.JWT.Expiration <= 0 {
		errs = append(errs, errors.New("config: JWT_EXPIRATION must be positive"))
	}

	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		errs = append(errs, errors.New("config: JWT_SECRET must be set in production"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
