package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

func openSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPoolPresets_AreValid(t *testing.T) {
	for name, cfg := range map[string]PoolConfig{
		"default":        DefaultPoolConfig(),
		"sqlite":         SQLitePoolConfig(),
		"many-instances": ManyInstancesPoolConfig(),
	} {
		assert.NoError(t, cfg.Validate(), name)
	}
	assert.Equal(t, 1, SQLitePoolConfig().MaxOpenConns)
	assert.Less(t, ManyInstancesPoolConfig().MaxOpenConns, DefaultPoolConfig().MaxOpenConns)
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  PoolConfig
	}{
		{"negative open", PoolConfig{MaxOpenConns: -1}},
		{"negative idle", PoolConfig{MaxIdleConns: -1}},
		{"idle above open", PoolConfig{MaxOpenConns: 2, MaxIdleConns: 3}},
		{"negative lifetime", PoolConfig{ConnMaxLifetime: -time.Second}},
		{"negative idle time", PoolConfig{ConnMaxIdleTime: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), core.ErrInvalidArgument)
		})
	}

	assert.NoError(t, PoolConfig{MaxIdleConns: 8}.Validate(), "unlimited open connections")
}

func TestPoolOptions(t *testing.T) {
	cfg := PoolConfig{}

	MaxOpenConns(50).applyPool(&cfg)
	MaxIdleConns(20).applyPool(&cfg)
	ConnMaxLifetime(10 * time.Minute).applyPool(&cfg)
	ConnMaxIdleTime(2 * time.Minute).applyPool(&cfg)
	assert.Equal(t, PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    20,
		ConnMaxLifetime: 10 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}, cfg)

	WithPoolConfig(SQLitePoolConfig()).applyPool(&cfg)
	assert.Equal(t, SQLitePoolConfig(), cfg)
}

func TestConfigurePool_SQLiteDefaultsToSingleConnection(t *testing.T) {
	db := openSQLite(t, "pool.db")

	require.NoError(t, ConfigurePool(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_OptionsOverridePreset(t *testing.T) {
	db := openSQLite(t, "pool.db")

	require.NoError(t, ConfigurePool(db, MaxOpenConns(3)))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 3, sqlDB.Stats().MaxOpenConnections)
}

func TestConfigurePool_RejectsInvalidSettings(t *testing.T) {
	db := openSQLite(t, "pool.db")

	err := ConfigurePool(db, MaxOpenConns(-5))

	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := openSQLite(t, "open.db")

	d, err := Open(context.Background(), db)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&ScheduledTask{}))
	assert.True(t, db.Migrator().HasTable(&NamespaceVersion{}))
	assert.True(t, d.IsSQLite())
}
