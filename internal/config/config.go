// Package config loads the YAML configuration file of the command line tool.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/jdziat/redis-scheduler/pkg/security"
	"github.com/jdziat/redis-scheduler/pkg/worker"
)

// Store drivers
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Stats     StatsConfig     `yaml:"stats"`
}

// SchedulerConfig mirrors the scheduler options.
//
// polling_delay is a Go duration string (e.g. "500ms", "10s").
type SchedulerConfig struct {
	Name         string `yaml:"name"`
	PollingDelay string `yaml:"polling_delay"`
	MaxRetries   int    `yaml:"max_retries"`
	InstanceID   string `yaml:"instance_id"`
	// ExecRate caps how many commands per second `run` starts. 0 means no cap.
	ExecRate int `yaml:"exec_rate"`
}

type StoreConfig struct {
	// Driver is one of redis, sqlite, postgres or memory.
	Driver   string         `yaml:"driver"`
	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	DialTimeout string `yaml:"dial_timeout"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StatsConfig enables per-minute trigger statistics in a SQLite file.
type StatsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			Name:         "scheduler",
			PollingDelay: worker.DefaultPollingDelay.String(),
			MaxRetries:   worker.DefaultMaxRetries,
		},
		Store: StoreConfig{
			Driver: DriverRedis,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				DialTimeout: "5s",
			},
			SQLite: SQLiteConfig{Path: "scheduler.db"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Stats: StatsConfig{
			Path:      "scheduler-stats.db",
			Retention: "168h",
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and names the first offending one.
func (c Config) Validate() error {
	if err := security.ValidateSchedulerName(c.Scheduler.Name); err != nil {
		return fmt.Errorf("scheduler.name: %w", err)
	}
	if _, err := c.PollingDelay(); err != nil {
		return err
	}
	if c.Scheduler.MaxRetries < 1 || c.Scheduler.MaxRetries > security.MaxRetries {
		return fmt.Errorf("scheduler.max_retries: must be between 1 and %d", security.MaxRetries)
	}
	if c.Scheduler.ExecRate < 0 {
		return errors.New("scheduler.exec_rate: must be >= 0")
	}

	switch c.Store.Driver {
	case DriverRedis:
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return errors.New("store.redis.addr: must not be empty")
		}
		if c.Store.Redis.DB < 0 {
			return errors.New("store.redis.db: must be >= 0")
		}
		if _, err := ParseDurationField("store.redis.dial_timeout", c.Store.Redis.DialTimeout); err != nil {
			return err
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLite.Path) == "" {
			return errors.New("store.sqlite.path: must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.Postgres.DSN) == "" {
			return errors.New("store.postgres.dsn: must not be empty")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("store.driver: unknown driver %q (want redis, sqlite, postgres or memory)", c.Store.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", c.Log.Format)
	}

	if c.Stats.Enabled && strings.TrimSpace(c.Stats.Path) == "" {
		return errors.New("stats.path: must not be empty when stats are enabled")
	}
	if _, err := ParseDurationField("stats.retention", c.Stats.Retention); err != nil {
		return err
	}
	return nil
}

// PollingDelay returns the parsed scheduler.polling_delay.
func (c Config) PollingDelay() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.polling_delay", c.Scheduler.PollingDelay, worker.DefaultPollingDelay)
}
