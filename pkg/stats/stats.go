// Package stats keeps per-minute trigger statistics of schedulers.
package stats

import (
	"context"
	"time"
)

// TriggerStat stores per-scheduler counters bucketed by minute.
type TriggerStat struct {
	ID                 uint      `gorm:"primaryKey"`
	Scheduler          string    `gorm:"index:idx_trigger_stats_scheduler_ts;size:255;not null"`
	Timestamp          time.Time `gorm:"index:idx_trigger_stats_scheduler_ts;not null"`
	Triggered          int64     `gorm:"default:0"`
	Failed             int64     `gorm:"default:0"`
	Conflicts          int64     `gorm:"default:0"`
	ConnectionFailures int64     `gorm:"default:0"`
}

// TableName returns the table name for GORM.
func (TriggerStat) TableName() string { return "trigger_stats" }

// Counters are the increments recorded for one scheduler and minute.
type Counters struct {
	Triggered          int64
	Failed             int64
	Conflicts          int64
	ConnectionFailures int64
}

// IsZero reports whether no counter was incremented.
func (c Counters) IsZero() bool {
	return c == Counters{}
}

// Storage is the interface for stats persistence.
type Storage interface {
	Migrate(ctx context.Context) error
	AddCounters(ctx context.Context, scheduler string, ts time.Time, c Counters) error
	History(ctx context.Context, scheduler string, since, until time.Time) ([]TriggerStat, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
