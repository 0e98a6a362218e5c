package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// PoolConfig tunes the *sql.DB behind a driver.
//
// A polling scheduler holds one connection per trigger attempt. Facade calls
// such as ScheduleAt and Unschedule take one more each while they run.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration // 0 keeps connections forever
	ConnMaxIdleTime time.Duration // 0 keeps idle connections forever
}

// Validate rejects negative settings and an idle pool larger than the open
// limit.
func (c PoolConfig) Validate() error {
	switch {
	case c.MaxOpenConns < 0:
		return core.InvalidArgument("max open connections must not be negative, got %d", c.MaxOpenConns)
	case c.MaxIdleConns < 0:
		return core.InvalidArgument("max idle connections must not be negative, got %d", c.MaxIdleConns)
	case c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns:
		return core.InvalidArgument("max idle connections (%d) exceed max open connections (%d)",
			c.MaxIdleConns, c.MaxOpenConns)
	case c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0:
		return core.InvalidArgument("connection lifetimes must not be negative")
	}
	return nil
}

// DefaultPoolConfig suits a networked database used by a few instances.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// SQLitePoolConfig keeps a single connection open for the life of the driver.
// SQLite serializes writers and an in-memory database lives only as long as
// its connection.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}
}

// ManyInstancesPoolConfig keeps each instance's share of a database small
// when many schedulers poll the same server.
func ManyInstancesPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 3 * time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
	}
}

// poolConfigFor picks the preset matching the dialect of db.
func poolConfigFor(db *gorm.DB) PoolConfig {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return SQLitePoolConfig()
	}
	return DefaultPoolConfig()
}

// PoolOption adjusts a PoolConfig.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// WithPoolConfig replaces every pool setting with cfg.
func WithPoolConfig(cfg PoolConfig) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { *c = cfg })
}

// MaxOpenConns limits open connections. Zero means unlimited.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.MaxOpenConns = n })
}

// MaxIdleConns limits idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.MaxIdleConns = n })
}

// ConnMaxLifetime closes connections older than d.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.ConnMaxLifetime = d })
}

// ConnMaxIdleTime closes connections idle for longer than d.
func ConnMaxIdleTime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) { c.ConnMaxIdleTime = d })
}

// ConfigurePool applies opts on top of the preset for the dialect of db and
// sets the result on its *sql.DB.
func ConfigurePool(db *gorm.DB, opts ...PoolOption) error {
	config := poolConfigFor(db)
	for _, opt := range opts {
		opt.applyPool(&config)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	return nil
}

// Open configures the pool of db, migrates the schema and returns a driver.
//
//	driver, err := gormstore.Open(ctx, db, gormstore.MaxOpenConns(20))
func Open(ctx context.Context, db *gorm.DB, opts ...PoolOption) (*Driver, error) {
	if err := ConfigurePool(db, opts...); err != nil {
		return nil, err
	}
	d := New(db)
	if err := d.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate scheduler tables: %w", err)
	}
	return d, nil
}
