package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// Runner triggers at most one due task per call.
type Runner interface {
	// TriggerNextTask returns true if a task was claimed and handed to the
	// listener. Errors matching core.ErrConnectionFailure are retried by the
	// Poller; any other error ends the loop.
	TriggerNextTask(ctx context.Context) (bool, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) (bool, error)

// TriggerNextTask calls f(ctx).
func (f RunnerFunc) TriggerNextTask(ctx context.Context) (bool, error) { return f(ctx) }

// Poller repeatedly triggers due tasks until stopped.
type Poller struct {
	runner Runner
	config Config
	logger *slog.Logger
}

// NewPoller creates a poller for the given runner.
func NewPoller(r Runner, opts ...Option) *Poller {
	config := Config{
		Name:         core.DefaultSchedulerName,
		PollingDelay: DefaultPollingDelay,
		MaxRetries:   DefaultMaxRetries,
		Logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt.ApplyPoller(&config)
	}

	return &Poller{
		runner: r,
		config: config,
		logger: config.Logger.With("scheduler", config.Name),
	}
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.config
}

// Run polls until ctx is cancelled, the retry budget is spent, or the runner
// returns an unexpected error. It returns the terminal state reached and,
// for the two failure states, the error that caused it.
//
// Cancelling ctx never interrupts a trigger attempt in progress: the runner
// receives a context that keeps ctx's values but not its cancellation. A
// pending sleep is interrupted immediately.
func (p *Poller) Run(ctx context.Context) (core.LoopState, error) {
	retries := newRetryState(p.config.MaxRetries)
	runCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			p.logger.Info("scheduler stopped")
			return core.StateStoppedByRequest, nil
		}

		triggered, err := p.runner.TriggerNextTask(runCtx)
		if err != nil {
			if !core.IsConnectionFailure(err) {
				p.logger.Error("error while polling scheduled tasks; no additional scheduled task will be triggered until the scheduler is restarted",
					"error", err)
				return core.StateStoppedByError, err
			}

			attempt := retries.fail()
			p.logger.Warn("connection failure during scheduler polling",
				"attempt", attempt,
				"max_attempts", p.config.MaxRetries,
				"error", err)
			if p.config.OnConnectionFailure != nil {
				p.config.OnConnectionFailure(attempt, p.config.MaxRetries, err)
			}

			if retries.exhausted() {
				p.logger.Error("maximum number of retries after store connection failure has been reached; no additional scheduled task will be triggered until the scheduler is restarted",
					"max_attempts", p.config.MaxRetries)
				return core.StateStoppedByRetryExhaustion, fmt.Errorf("%w (%d attempts): %w", core.ErrRetryExhausted, attempt, err)
			}
			continue
		}

		retries.reset()

		// Drain backlogs without waiting when a task was found.
		if triggered {
			continue
		}

		if !p.sleep(ctx) {
			p.logger.Info("scheduler stopped")
			return core.StateStoppedByRequest, nil
		}
	}
}

// sleep waits for the polling delay. It returns false if ctx was cancelled first.
func (p *Poller) sleep(ctx context.Context) bool {
	timer := time.NewTimer(p.config.PollingDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
