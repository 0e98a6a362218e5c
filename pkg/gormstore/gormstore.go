package gormstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

var errWatchedKeyChanged = errors.New("gormstore: watched key changed")

// Driver implements core.Driver using GORM.
type Driver struct {
	db *gorm.DB
}

var _ core.Driver = (*Driver)(nil)

// New creates a GORM-backed driver. Call Migrate before first use.
func New(db *gorm.DB) *Driver {
	return &Driver{db: db}
}

// DB returns the underlying database handle.
func (d *Driver) DB() *gorm.DB {
	return d.db
}

// IsSQLite reports whether the database is SQLite.
func (d *Driver) IsSQLite() bool {
	return d.db != nil && d.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (d *Driver) Migrate(ctx context.Context) error {
	return classify(d.db.WithContext(ctx).AutoMigrate(&ScheduledTask{}, &NamespaceVersion{}))
}

// Close closes the underlying connection pool.
func (d *Driver) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Execute runs fn on a new session. Commands outside MULTI each run in
// their own database transaction.
func (d *Driver) Execute(ctx context.Context, fn func(core.Commands) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify(fn(&session{db: d.db}))
}

type session struct {
	db      *gorm.DB
	watched map[string]int64
	queued  []func(tx *gorm.DB) error
	multi   bool
}

func (s *session) apply(ctx context.Context, op func(tx *gorm.DB) error) error {
	if s.multi {
		s.queued = append(s.queued, op)
		return nil
	}
	return classify(s.db.WithContext(ctx).Transaction(op))
}

func (s *session) AddToSetWithScore(ctx context.Context, key, taskID string, score int64) error {
	return s.apply(ctx, func(tx *gorm.DB) error {
		return upsertTask(tx, key, taskID, score)
	})
}

func (s *session) RemoveFromSet(ctx context.Context, key, taskID string) error {
	return s.apply(ctx, func(tx *gorm.DB) error {
		res := tx.Where("namespace = ? AND task_id = ?", key, taskID).Delete(&ScheduledTask{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return bumpVersion(tx, key)
	})
}

func (s *session) Remove(ctx context.Context, key string) error {
	return s.apply(ctx, func(tx *gorm.DB) error {
		res := tx.Where("namespace = ?", key).Delete(&ScheduledTask{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return bumpVersion(tx, key)
	})
}

func (s *session) Watch(ctx context.Context, key string) error {
	version, err := currentVersion(s.db.WithContext(ctx), key)
	if err != nil {
		return classify(err)
	}
	if s.watched == nil {
		s.watched = make(map[string]int64)
	}
	if _, ok := s.watched[key]; !ok {
		s.watched[key] = version
	}
	return nil
}

func (s *session) Unwatch(ctx context.Context) error {
	s.watched = nil
	return nil
}

func (s *session) Multi(ctx context.Context) error {
	s.multi = true
	return nil
}

func (s *session) Exec(ctx context.Context) (bool, error) {
	if !s.multi {
		return false, core.ErrExecWithoutMulti
	}
	queued, watched := s.queued, s.watched
	s.queued, s.watched, s.multi = nil, nil, false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, version := range watched {
			ok, err := claimVersion(tx, key, version)
			if err != nil {
				return err
			}
			if !ok {
				return errWatchedKeyChanged
			}
		}
		for _, op := range queued {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errWatchedKeyChanged) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (s *session) FirstByScore(ctx context.Context, key string, minScore, maxScore int64) (string, bool, error) {
	var rows []ScheduledTask
	err := s.db.WithContext(ctx).
		Where("namespace = ?", key).
		Where("due_at >= ? AND due_at <= ?", minScore, maxScore).
		Order("due_at ASC, task_id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, classify(err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].TaskID, true, nil
}

// upsertTask inserts or moves a task. Rewriting the same due time is not a
// change and leaves the namespace version alone.
func upsertTask(tx *gorm.DB, key, taskID string, score int64) error {
	var rows []ScheduledTask
	err := tx.Where("namespace = ? AND task_id = ?", key, taskID).Limit(1).Find(&rows).Error
	if err != nil {
		return err
	}
	if len(rows) == 1 && rows[0].DueAt == score {
		return nil
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"due_at", "updated_at"}),
	}).Create(&ScheduledTask{Namespace: key, TaskID: taskID, DueAt: score}).Error
	if err != nil {
		return err
	}
	return bumpVersion(tx, key)
}

func bumpVersion(tx *gorm.DB, key string) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "namespace"}},
		DoUpdates: clause.Assignments(map[string]any{
			"version": gorm.Expr("namespace_versions.version + 1"),
		}),
	}).Create(&NamespaceVersion{Namespace: key, Version: 1}).Error
}

func currentVersion(db *gorm.DB, key string) (int64, error) {
	var rows []NamespaceVersion
	if err := db.Where("namespace = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Version, nil
}

// claimVersion increments the version of key if it still equals version.
// A namespace never written has version 0 and no row.
func claimVersion(tx *gorm.DB, key string, version int64) (bool, error) {
	if version == 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&NamespaceVersion{Namespace: key, Version: 1})
		return res.RowsAffected == 1, res.Error
	}
	res := tx.Model(&NamespaceVersion{}).
		Where("namespace = ? AND version = ?", key, version).
		Update("version", gorm.Expr("version + 1"))
	return res.RowsAffected == 1, res.Error
}

// classify marks errors caused by a lost or closed connection.
func classify(err error) error {
	if err == nil || core.IsConnectionFailure(err) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &netErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		strings.Contains(err.Error(), "database is closed"):
		return core.ConnectionFailure(err)
	}
	return err
}
