// Package schedule computes due times for recurring tasks.
//
// This package includes:
//   - Schedule interface for computing the next due time
//   - Every() for fixed-interval schedules
//   - Daily() and DailyIn() for a specific time each day
//   - Weekly() and WeeklyIn() for a specific day and time each week
//   - Cron() and ParseCron() for cron expression-based schedules
//
// A Schedule only computes times. Use Scheduler.ScheduleNext to place the
// next occurrence of a task in the store, typically from the listener once
// the previous occurrence has fired.
package schedule
