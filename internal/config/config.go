package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	StoreDriver    string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"smartchess.db"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"16"`

	RedisURL      string        `env:"REDIS_URL"`
	CheckpointTTL time.Duration `env:"CHECKPOINT_TTL" envDefault:"24h"`

	MessagesDir  string `env:"MESSAGES_DIR"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"20"`
}

// Load reads AppConfig from the process environment and validates it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)

	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		return fmt.Errorf("HISTORY_LIMIT must be between 1 and 100, got %d", c.HistoryLimit)
	}
	if c.DBMaxOpenConns <= 0 {
		c.DBMaxOpenConns = 16
	}
	if c.CheckpointTTL <= 0 {
		return fmt.Errorf("CHECKPOINT_TTL must be positive, got %s", c.CheckpointTTL)
	}
	return nil
}

// CheckpointsEnabled reports whether a Redis URL was configured.
func (c *AppConfig) CheckpointsEnabled() bool {
	return c.RedisURL != ""
}
