package gormstore

import "time"

// ScheduledTask is a pending task of one namespace.
type ScheduledTask struct {
	Namespace string `gorm:"primaryKey;size:255"`
	TaskID    string `gorm:"primaryKey;size:1024"`
	DueAt     int64  `gorm:"not null;index"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM.
func (ScheduledTask) TableName() string { return "scheduled_tasks" }

// NamespaceVersion counts the changes made to a namespace.
type NamespaceVersion struct {
	Namespace string `gorm:"primaryKey;size:255"`
	Version   int64  `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (NamespaceVersion) TableName() string { return "namespace_versions" }
