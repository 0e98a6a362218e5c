package redisscheduler

import (
	"time"

	"github.com/jdziat/redis-scheduler/pkg/schedule"
)

// Schedule computes the next occurrence of a recurring task.
type Schedule = schedule.Schedule

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at a specific UTC time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that runs at a specific day and UTC time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a cron expression. It panics on an invalid
// expression; use ParseCron for input that is not a constant.
func Cron(expr string) Schedule {
	return schedule.Cron(expr)
}

// ParseCron parses a cron expression.
func ParseCron(expr string) (Schedule, error) {
	return schedule.ParseCron(expr)
}
