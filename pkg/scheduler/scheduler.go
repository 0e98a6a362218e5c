package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/schedule"
	"github.com/jdziat/redis-scheduler/pkg/security"
	"github.com/jdziat/redis-scheduler/pkg/taskctx"
	"github.com/jdziat/redis-scheduler/pkg/worker"
)

// Scheduler schedules tasks in a shared store and triggers them when due.
//
// Any number of Scheduler instances, in any number of processes, may share
// one store and one name: each due task is handed to exactly one of them.
type Scheduler struct {
	driver   core.Driver
	listener core.TaskTriggerListener
	identity core.Identity
	config   Config
	logger   *slog.Logger
	// pollLogger carries the instance attribute only; the poller adds the name.
	pollLogger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool // Stop was called on the current loop
	state  atomic.Value // core.LoopState

	subsMu    sync.RWMutex
	eventSubs []chan core.Event
}

// New creates a scheduler storing its tasks through driver and handing due
// tasks to listener.
func New(driver core.Driver, listener core.TaskTriggerListener, opts ...Option) (*Scheduler, error) {
	if driver == nil {
		return nil, core.InvalidArgument("a driver must be provided")
	}
	if listener == nil {
		return nil, core.InvalidArgument("a task trigger listener must be provided")
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt.Apply(&config)
	}

	if err := security.ValidateSchedulerName(config.Name); err != nil {
		return nil, err
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.New().String()
	}

	pollLogger := config.Logger.With("instance", config.InstanceID)
	s := &Scheduler{
		driver:     driver,
		listener:   listener,
		identity:   core.NewIdentity(config.Name),
		config:     config,
		logger:     pollLogger.With("scheduler", config.Name),
		pollLogger: pollLogger,
	}
	s.state.Store(core.StateIdle)
	return s, nil
}

// Name returns the scheduler name.
func (s *Scheduler) Name() string { return s.identity.Name() }

// Key returns the store key holding the pending tasks.
func (s *Scheduler) Key() string { return s.identity.Key() }

// InstanceID returns the id of this instance.
func (s *Scheduler) InstanceID() string { return s.config.InstanceID }

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.config }

// RunNow schedules taskID for immediate execution.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) error {
	return s.ScheduleAt(ctx, taskID, s.config.Clock.Now())
}

// ScheduleAt schedules taskID to be triggered at the given time. A time in
// the past makes the task due on the next poll. Scheduling a task that is
// already scheduled replaces its trigger time.
func (s *Scheduler) ScheduleAt(ctx context.Context, taskID string, at time.Time) error {
	if at.IsZero() {
		return core.InvalidArgument("a trigger time must be provided")
	}
	if at.UnixMilli() < 0 {
		return core.InvalidArgument("trigger time %s is before the Unix epoch", at.UTC().Format(time.RFC3339))
	}
	if err := security.ValidateTaskID(taskID); err != nil {
		return err
	}

	key := s.identity.Key()
	return s.driver.Execute(ctx, func(c core.Commands) error {
		return c.AddToSetWithScore(ctx, key, taskID, at.UnixMilli())
	})
}

// ScheduleAfter schedules taskID to be triggered once d has elapsed.
func (s *Scheduler) ScheduleAfter(ctx context.Context, taskID string, d time.Duration) error {
	return s.ScheduleAt(ctx, taskID, s.config.Clock.Now().Add(d))
}

// ScheduleNext schedules taskID at the next occurrence of sched after now
// and returns that time.
func (s *Scheduler) ScheduleNext(ctx context.Context, taskID string, sched schedule.Schedule) (time.Time, error) {
	if sched == nil {
		return time.Time{}, core.InvalidArgument("a schedule must be provided")
	}
	next := sched.Next(s.config.Clock.Now())
	if err := s.ScheduleAt(ctx, taskID, next); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

// Unschedule removes taskID. Unscheduling an unknown task has no effect.
func (s *Scheduler) Unschedule(ctx context.Context, taskID string) error {
	key := s.identity.Key()
	return s.driver.Execute(ctx, func(c core.Commands) error {
		return c.RemoveFromSet(ctx, key, taskID)
	})
}

// UnscheduleAll removes every task of this scheduler.
func (s *Scheduler) UnscheduleAll(ctx context.Context) error {
	key := s.identity.Key()
	return s.driver.Execute(ctx, func(c core.Commands) error {
		return c.Remove(ctx, key)
	})
}

// TriggerNextTask claims the earliest due task and hands it to the listener.
//
// The claim is an optimistic transaction: the key is watched, the earliest
// due task is read, and its removal is committed only if nothing changed the
// key in between. A committed removal makes this instance the only one to
// ever see the task; an aborted one means another instance got there first,
// and nothing is triggered. It returns true if the listener was called.
func (s *Scheduler) TriggerNextTask(ctx context.Context) (bool, error) {
	key := s.identity.Key()

	var (
		taskID  string
		found   bool
		claimed bool
	)
	err := s.driver.Execute(ctx, func(c core.Commands) error {
		if err := c.Watch(ctx, key); err != nil {
			return err
		}

		id, ok, err := c.FirstByScore(ctx, key, 0, s.config.Clock.Now().UnixMilli())
		if err != nil {
			return err
		}
		if !ok {
			return c.Unwatch(ctx)
		}

		if err := c.Multi(ctx); err != nil {
			return err
		}
		if err := c.RemoveFromSet(ctx, key, id); err != nil {
			return err
		}
		committed, err := c.Exec(ctx)
		if err != nil {
			return err
		}

		taskID, found, claimed = id, true, committed
		return nil
	})
	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	if !claimed {
		s.logger.Warn("race condition detected for triggering of task; it has probably been triggered by another instance",
			"task_id", security.SanitizeTaskID(taskID))
		s.emit(&core.TriggerConflict{Scheduler: s.Name(), TaskID: taskID, Timestamp: s.config.Clock.Now()})
		return false, nil
	}

	s.logger.Debug("triggering execution of task", "task_id", security.SanitizeTaskID(taskID))
	s.emit(&core.TaskTriggered{Scheduler: s.Name(), TaskID: taskID, Timestamp: s.config.Clock.Now()})
	s.fire(ctx, taskID)
	return true, nil
}

func (s *Scheduler) fire(ctx context.Context, taskID string) {
	ctx = taskctx.WithTrigger(ctx, taskctx.Trigger{
		TaskID:      taskID,
		Scheduler:   s.Name(),
		InstanceID:  s.config.InstanceID,
		TriggeredAt: s.config.Clock.Now(),
	})
	if err := s.callListener(ctx, taskID); err != nil {
		s.logger.Error("error during execution of task",
			"task_id", security.SanitizeTaskID(taskID),
			"error", err)
		s.emit(&core.TaskFailed{Scheduler: s.Name(), TaskID: taskID, Error: err, Timestamp: s.config.Clock.Now()})
	}
}

func (s *Scheduler) callListener(ctx context.Context, taskID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.listener.TaskTriggered(ctx, taskID)
}

// Start launches the polling loop in a new goroutine. The loop runs until
// Stop is called, ctx is cancelled, or it gives up (see State).
// Calling Start while the loop is running does nothing. Calling it after
// Stop starts a new loop, once the previous one has exited.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A loop told to stop may still be finishing a task; the new loop
	// starts once it has exited.
	var prev chan struct{}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			if !s.stopping {
				return
			}
			prev = s.done
		}
	}

	poller := worker.NewPoller(s,
		worker.Name(s.Name()),
		worker.PollingDelay(s.config.PollingDelay),
		worker.MaxRetries(s.config.MaxRetries),
		worker.Logger(s.pollLogger),
		worker.OnConnectionFailure(func(attempt, maxAttempts int, err error) {
			s.emit(&core.ConnectionLost{
				Scheduler:   s.Name(),
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
				Error:       err,
				Timestamp:   s.config.Clock.Now(),
			})
		}),
	)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.stopping = cancel, done, false
	s.state.Store(core.StateRunning)

	go s.run(loopCtx, cancel, poller, prev, done)

	s.logger.Info("started scheduler", "polling_delay", s.config.PollingDelay)
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, poller *worker.Poller, prev, done chan struct{}) {
	defer close(done)
	defer cancel()

	if prev != nil {
		<-prev
		s.state.Store(core.StateRunning)
	}

	state, err := poller.Run(ctx)
	s.state.Store(state)
	s.emit(&core.SchedulerStopped{Scheduler: s.Name(), State: state, Error: err, Timestamp: s.config.Clock.Now()})
}

// Stop asks the polling loop to exit. It does not wait: a task being
// handed to the listener is allowed to finish. Use Done to wait.
// Calling Stop before Start does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.stopping = true
	}
}

// Close stops the polling loop and waits for it to exit.
// It must not be called from the listener.
func (s *Scheduler) Close() error {
	s.Stop()
	<-s.Done()
	return nil
}

// Done returns a channel closed once the polling loop has exited.
// If the loop was never started the channel is already closed.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// State returns the state of the polling loop.
func (s *Scheduler) State() core.LoopState {
	return s.state.Load().(core.LoopState)
}
