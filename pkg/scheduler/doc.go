// Package scheduler provides the Scheduler type, the entry point for
// scheduling tasks and running the polling loop that triggers them.
//
// This package includes:
//   - Scheduler: schedules, unschedules and triggers tasks
//   - Option: configuration for name, polling delay, retries, clock and logger
//   - The optimistic claim protocol that guarantees a due task is handed to
//     at most one of the cooperating scheduler instances
//
// Most users should import the root package github.com/jdziat/redis-scheduler
// which re-exports these types.
package scheduler
