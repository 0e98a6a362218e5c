// Package worker provides the polling loop for the scheduler.
package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/redis-scheduler/pkg/security"
)

// Default polling configuration
const (
	DefaultPollingDelay = 10 * time.Second
	DefaultMaxRetries   = 1
)

// Option configures a Poller.
type Option interface {
	ApplyPoller(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) ApplyPoller(c *Config) { f(c) }

// Config holds poller configuration.
type Config struct {
	Name         string        // used in log records
	PollingDelay time.Duration // sleep after a poll that found nothing
	MaxRetries   int           // consecutive connection failures before giving up
	Logger       *slog.Logger

	// OnConnectionFailure is called after every connection failure with the
	// current and maximum attempt count.
	OnConnectionFailure func(attempt, maxAttempts int, err error)
}

// PollingDelay sets the delay between two polls that found no due task.
// Values are clamped to [MinPollingDelay, MaxPollingDelay].
func PollingDelay(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.PollingDelay = security.ClampPollingDelay(d)
	})
}

// MaxRetries sets how many consecutive connection failures are tolerated.
// Values are clamped to [1, MaxRetries].
func MaxRetries(n int) Option {
	return optionFunc(func(c *Config) {
		c.MaxRetries = security.ClampRetries(n)
	})
}

// Name sets the name reported in log records.
func Name(name string) Option {
	return optionFunc(func(c *Config) {
		c.Name = name
	})
}

// Logger sets the logger.
func Logger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// OnConnectionFailure registers a hook called on every connection failure.
func OnConnectionFailure(fn func(attempt, maxAttempts int, err error)) Option {
	return optionFunc(func(c *Config) {
		c.OnConnectionFailure = fn
	})
}
