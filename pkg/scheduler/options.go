package scheduler

import (
	"log/slog"
	"time"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/security"
	"github.com/jdziat/redis-scheduler/pkg/worker"
)

// Config holds scheduler configuration.
type Config struct {
	Name         string
	PollingDelay time.Duration
	MaxRetries   int
	Clock        core.Clock
	Logger       *slog.Logger
	InstanceID   string
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Name:         core.DefaultSchedulerName,
		PollingDelay: worker.DefaultPollingDelay,
		MaxRetries:   worker.DefaultMaxRetries,
		Clock:        core.SystemClock{},
		Logger:       slog.Default(),
	}
}

// Option modifies Config.
type Option interface {
	Apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) Apply(c *Config) { f(c) }

// WithSchedulerName sets the scheduler name. Schedulers sharing a store
// cooperate on tasks only when they share a name.
func WithSchedulerName(name string) Option {
	return optionFunc(func(c *Config) {
		c.Name = name
	})
}

// WithPollingDelay sets the delay between two polls that found no due task.
// The lower the value, the better the triggering precision and the higher
// the load on the store.
func WithPollingDelay(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.PollingDelay = security.ClampPollingDelay(d)
	})
}

// WithMaxRetriesOnConnectionFailure sets how many consecutive connection
// failures the polling loop tolerates before it stops for good.
func WithMaxRetriesOnConnectionFailure(n int) Option {
	return optionFunc(func(c *Config) {
		c.MaxRetries = security.ClampRetries(n)
	})
}

// WithClock sets the time source.
func WithClock(clock core.Clock) Option {
	return optionFunc(func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithInstanceID sets the id this instance reports in logs.
// By default a random UUID is used.
func WithInstanceID(id string) Option {
	return optionFunc(func(c *Config) {
		c.InstanceID = id
	})
}
