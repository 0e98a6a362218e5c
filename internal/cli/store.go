package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/redis-scheduler/internal/config"
	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/gormstore"
	"github.com/jdziat/redis-scheduler/pkg/memstore"
	"github.com/jdziat/redis-scheduler/pkg/redisstore"
	"github.com/jdziat/redis-scheduler/pkg/scheduler"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// openStore opens the driver selected by c. The closer releases its
// connections.
func openStore(ctx context.Context, c config.StoreConfig) (core.Driver, io.Closer, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch c.Driver {
	case config.DriverRedis:
		dialTimeout, err := config.ParseDurationField("store.redis.dial_timeout", c.Redis.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		d := redisstore.Open(&redis.Options{
			Addr:        c.Redis.Addr,
			Password:    c.Redis.Password,
			DB:          c.Redis.DB,
			DialTimeout: dialTimeout,
		})
		return d, d, nil

	case config.DriverSQLite:
		db, err := gorm.Open(sqlite.Open(c.SQLite.Path), gormConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		d, err := gormstore.Open(ctx, db, gormstore.WithPoolConfig(gormstore.SQLitePoolConfig()))
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil

	case config.DriverPostgres:
		db, err := gorm.Open(postgres.Open(c.Postgres.DSN), gormConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		d, err := gormstore.Open(ctx, db, gormstore.WithPoolConfig(gormstore.ManyInstancesPoolConfig()))
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil

	case config.DriverMemory:
		return memstore.New(), nopCloser, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", c.Driver)
}

// newScheduler builds a scheduler from the loaded configuration.
func newScheduler(driver core.Driver, listener core.TaskTriggerListener, log *slog.Logger, extra ...scheduler.Option) (*scheduler.Scheduler, error) {
	delay, err := cfg.PollingDelay()
	if err != nil {
		return nil, err
	}
	opts := []scheduler.Option{
		scheduler.WithSchedulerName(cfg.Scheduler.Name),
		scheduler.WithPollingDelay(delay),
		scheduler.WithMaxRetriesOnConnectionFailure(cfg.Scheduler.MaxRetries),
		scheduler.WithLogger(log),
	}
	if cfg.Scheduler.InstanceID != "" {
		opts = append(opts, scheduler.WithInstanceID(cfg.Scheduler.InstanceID))
	}
	return scheduler.New(driver, listener, append(opts, extra...)...)
}

// withScheduler opens the configured store, builds a scheduler that never
// triggers anything and passes it to fn.
func withScheduler(ctx context.Context, errOut io.Writer, fn func(*scheduler.Scheduler) error) error {
	driver, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	noop := core.ListenerFunc(func(context.Context, string) error { return nil })
	s, err := newScheduler(driver, noop, newLogger(cfg.Log, errOut))
	if err != nil {
		return err
	}
	return fn(s)
}
