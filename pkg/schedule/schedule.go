package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule defines when a task should run next.
type Schedule interface {
	// Next returns the first due time strictly after from.
	Next(from time.Time) time.Time
}

type interval time.Duration

// Every fires d after the previous due time. It panics if d is not positive.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		panic(fmt.Sprintf("schedule: interval must be positive, got %v", d))
	}
	return interval(d)
}

func (i interval) Next(from time.Time) time.Time {
	return from.Add(time.Duration(i))
}

// wallClock fires at a fixed wall-clock time, every day or on one weekday.
type wallClock struct {
	hour, minute int
	weekly       bool
	day          time.Weekday
	loc          *time.Location
}

// Daily fires at hour:minute UTC each day.
func Daily(hour, minute int) Schedule {
	return DailyIn(hour, minute, time.UTC)
}

// DailyIn fires at hour:minute in loc each day.
func DailyIn(hour, minute int, loc *time.Location) Schedule {
	return wallClock{hour: hour, minute: minute, loc: orUTC(loc)}
}

// Weekly fires at hour:minute UTC on day each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return WeeklyIn(day, hour, minute, time.UTC)
}

// WeeklyIn fires at hour:minute in loc on day each week.
func WeeklyIn(day time.Weekday, hour, minute int, loc *time.Location) Schedule {
	return wallClock{hour: hour, minute: minute, weekly: true, day: day, loc: orUTC(loc)}
}

func (w wallClock) Next(from time.Time) time.Time {
	from = from.In(w.loc)
	step, offset := 1, 0
	if w.weekly {
		step = 7
		offset = (int(w.day) - int(from.Weekday()) + 7) % 7
	}
	next := time.Date(from.Year(), from.Month(), from.Day()+offset, w.hour, w.minute, 0, 0, w.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, step)
	}
	return next
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

type cronSchedule struct {
	cron.Schedule
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron creates a schedule from a five-field cron expression or a
// descriptor such as "@hourly".
func ParseCron(expr string) (Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
	}
	return cronSchedule{sched}, nil
}

// Cron is like ParseCron but panics on an invalid expression.
func Cron(expr string) Schedule {
	sched, err := ParseCron(expr)
	if err != nil {
		panic(err.Error())
	}
	return sched
}
