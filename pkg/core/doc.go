// Package core provides the fundamental types and interfaces for the scheduler.
//
// This package contains:
//   - Driver and Commands, the command set a backing store must offer
//   - TaskTriggerListener, the callback invoked when a task is due
//   - Identity, which maps a scheduler name to its store key
//   - Clock, the time source used to decide what is due
//   - Error types and loop states
//   - Event types for scheduler monitoring
//
// Most users should import the root package github.com/jdziat/redis-scheduler
// instead of this package directly.
package core
