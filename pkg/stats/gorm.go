package stats

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// gormStorage implements Storage using GORM.
type gormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a GORM-backed stats storage.
func NewGormStorage(db *gorm.DB) Storage {
	return &gormStorage{db: db}
}

func (s *gormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&TriggerStat{})
}

func (s *gormStorage) AddCounters(ctx context.Context, scheduler string, ts time.Time, c Counters) error {
	ts = ts.UTC().Truncate(time.Minute)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing TriggerStat
		err := tx.Where("scheduler = ? AND timestamp = ?", scheduler, ts).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&TriggerStat{
				Scheduler:          scheduler,
				Timestamp:          ts,
				Triggered:          c.Triggered,
				Failed:             c.Failed,
				Conflicts:          c.Conflicts,
				ConnectionFailures: c.ConnectionFailures,
			}).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&existing).Updates(map[string]any{
			"triggered":           gorm.Expr("triggered + ?", c.Triggered),
			"failed":              gorm.Expr("failed + ?", c.Failed),
			"conflicts":           gorm.Expr("conflicts + ?", c.Conflicts),
			"connection_failures": gorm.Expr("connection_failures + ?", c.ConnectionFailures),
		}).Error
	})
}

func (s *gormStorage) History(ctx context.Context, scheduler string, since, until time.Time) ([]TriggerStat, error) {
	var stats []TriggerStat
	q := s.db.WithContext(ctx).Order("timestamp ASC")

	if scheduler != "" {
		q = q.Where("scheduler = ?", scheduler)
	}
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since.UTC())
	}
	if !until.IsZero() {
		q = q.Where("timestamp <= ?", until.UTC())
	}

	return stats, q.Find(&stats).Error
}

func (s *gormStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("timestamp < ?", before.UTC()).Delete(&TriggerStat{})
	return result.RowsAffected, result.Error
}
