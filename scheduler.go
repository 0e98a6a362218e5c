// Package redisscheduler triggers application tasks at a point in time,
// with any number of cooperating instances sharing one store.
//
// This is the main package users should import. It re-exports the public
// types of the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sched, _ := redisscheduler.New(
//	    redisscheduler.NewRedisStore(client),
//	    redisscheduler.ListenerFunc(func(ctx context.Context, taskID string) error {
//	        return runTask(ctx, taskID)
//	    }),
//	    redisscheduler.WithSchedulerName("billing"),
//	)
//
//	sched.ScheduleAt(ctx, "invoice-42", time.Now().Add(time.Hour))
//	sched.Start(ctx)
//	defer sched.Close()
package redisscheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/scheduler"
	"github.com/jdziat/redis-scheduler/pkg/security"
	"github.com/jdziat/redis-scheduler/pkg/taskctx"
	"github.com/jdziat/redis-scheduler/pkg/worker"
)

type (
	// Scheduler schedules tasks in a shared store and triggers them when due.
	Scheduler = scheduler.Scheduler

	// Option modifies Config.
	Option = scheduler.Option

	// Config holds scheduler configuration.
	Config = scheduler.Config

	// Driver executes store commands on one session.
	Driver = core.Driver

	// Commands is the store command set used by the scheduler.
	Commands = core.Commands

	// TaskTriggerListener is called with the id of every task this instance triggers.
	TaskTriggerListener = core.TaskTriggerListener

	// ListenerFunc adapts a function to TaskTriggerListener.
	ListenerFunc = core.ListenerFunc

	// Clock is the time source of a scheduler.
	Clock = core.Clock

	// ClockFunc adapts a function to Clock.
	ClockFunc = core.ClockFunc

	// LoopState is the state of the polling loop.
	LoopState = core.LoopState

	// Event is the interface for all scheduler events.
	Event = core.Event

	// TaskTriggered is emitted when a task is handed to the listener.
	TaskTriggered = core.TaskTriggered

	// TaskFailed is emitted when the listener fails.
	TaskFailed = core.TaskFailed

	// TriggerConflict is emitted when another instance claimed a task first.
	TriggerConflict = core.TriggerConflict

	// ConnectionLost is emitted on every store connection failure of the loop.
	ConnectionLost = core.ConnectionLost

	// SchedulerStopped is emitted when the polling loop exits.
	SchedulerStopped = core.SchedulerStopped

	// ConnectionError wraps a store connection failure.
	ConnectionError = core.ConnectionError
)

// Loop states
const (
	StateIdle                     = core.StateIdle
	StateRunning                  = core.StateRunning
	StateStoppedByRequest         = core.StateStoppedByRequest
	StateStoppedByRetryExhaustion = core.StateStoppedByRetryExhaustion
	StateStoppedByError           = core.StateStoppedByError
)

// Limits
const (
	MaxSchedulerNameLength = security.MaxSchedulerNameLength
	MaxTaskIDLength        = security.MaxTaskIDLength
	MaxRetries             = security.MaxRetries
	MinPollingDelay        = security.MinPollingDelay
	MaxPollingDelay        = security.MaxPollingDelay
)

// Default values
const (
	DefaultSchedulerName = core.DefaultSchedulerName
	DefaultPollingDelay  = worker.DefaultPollingDelay
	DefaultMaxRetries    = worker.DefaultMaxRetries
)

// New creates a scheduler storing its tasks through driver and handing due
// tasks to listener.
func New(driver Driver, listener TaskTriggerListener, opts ...Option) (*Scheduler, error) {
	return scheduler.New(driver, listener, opts...)
}

// WithSchedulerName sets the scheduler name. Default "scheduler".
func WithSchedulerName(name string) Option {
	return scheduler.WithSchedulerName(name)
}

// WithPollingDelay sets the delay between two polls that found no due task.
// Default 10 seconds.
func WithPollingDelay(d time.Duration) Option {
	return scheduler.WithPollingDelay(d)
}

// WithMaxRetriesOnConnectionFailure sets how many consecutive connection
// failures the polling loop tolerates. Default 1.
func WithMaxRetriesOnConnectionFailure(n int) Option {
	return scheduler.WithMaxRetriesOnConnectionFailure(n)
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return scheduler.WithClock(c)
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return scheduler.WithLogger(l)
}

// WithInstanceID sets the id identifying this instance in logs.
func WithInstanceID(id string) Option {
	return scheduler.WithInstanceID(id)
}

// ValidateSchedulerName validates a scheduler name.
func ValidateSchedulerName(name string) error {
	return security.ValidateSchedulerName(name)
}

// ValidateTaskID validates a task id.
func ValidateTaskID(taskID string) error {
	return security.ValidateTaskID(taskID)
}

// Trigger describes the task a listener is handling.
type Trigger = taskctx.Trigger

// TriggerFromContext returns the trigger a listener is handling, if any.
func TriggerFromContext(ctx context.Context) (Trigger, bool) {
	return taskctx.TriggerFromContext(ctx)
}

// TaskIDFromContext returns the id of the task a listener is handling, or an
// empty string outside a listener.
func TaskIDFromContext(ctx context.Context) string {
	return taskctx.TaskIDFromContext(ctx)
}
