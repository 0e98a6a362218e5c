package gormstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh SQLite file in a temporary directory.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), config)
		require.NoError(t, err, "open postgres test db")
		require.NoError(t, ConfigurePool(db, WithPoolConfig(ManyInstancesPoolConfig())))

		cleanupDB(t, db)
		t.Cleanup(func() {
			cleanupDB(t, db)
			sqlDB, _ := db.DB()
			_ = sqlDB.Close()
		})
		return db
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scheduler.db")), config)
	require.NoError(t, err, "open sqlite test db")
	require.NoError(t, ConfigurePool(db, WithPoolConfig(SQLitePoolConfig())))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

// cleanupDB empties the scheduler tables so tests sharing a PostgreSQL
// database stay isolated.
func cleanupDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	if !db.Migrator().HasTable(&ScheduledTask{}) {
		return
	}
	require.NoError(t, db.Exec("DELETE FROM scheduled_tasks").Error)
	require.NoError(t, db.Exec("DELETE FROM namespace_versions").Error)
}

// newTestDriver returns a migrated driver on a fresh database.
func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d := New(openTestDB(t))
	require.NoError(t, d.Migrate(context.Background()), "migrate schema")
	return d
}
