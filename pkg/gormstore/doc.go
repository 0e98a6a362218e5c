// Package gormstore provides a Driver over a SQL database through GORM.
//
// Pending tasks live in the scheduled_tasks table, one row per namespace and
// task id. Each namespace also has a row in namespace_versions whose version
// is bumped by every change. Watch records that version and Exec commits only
// if it can compare-and-increment every watched version in the same database
// transaction as the queued commands, which gives the optimistic semantics of
// Redis WATCH/MULTI/EXEC on SQLite or PostgreSQL.
package gormstore
