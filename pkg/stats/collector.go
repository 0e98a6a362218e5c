package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// EventSource is implemented by scheduler.Scheduler.
type EventSource interface {
	Events() <-chan core.Event
	Unsubscribe(ch <-chan core.Event)
}

// Collector subscribes to scheduler events and periodically writes counters.
type Collector struct {
	source        EventSource
	stats         Storage
	retention     time.Duration
	flushInterval time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	counters map[string]*Counters

	// ready is closed once the collector has subscribed to events.
	ready     chan struct{}
	readyOnce sync.Once
}

// CollectorOption configures the Collector.
type CollectorOption interface {
	apply(*Collector)
}

type collectorOptionFunc func(*Collector)

func (f collectorOptionFunc) apply(c *Collector) { f(c) }

// WithRetention sets how long stats rows are kept. Zero keeps them forever.
func WithRetention(d time.Duration) CollectorOption {
	return collectorOptionFunc(func(c *Collector) {
		c.retention = d
	})
}

// WithFlushInterval sets how often counters are written.
func WithFlushInterval(d time.Duration) CollectorOption {
	return collectorOptionFunc(func(c *Collector) {
		if d > 0 {
			c.flushInterval = d
		}
	})
}

// WithLogger sets the logger used to report write errors.
func WithLogger(l *slog.Logger) CollectorOption {
	return collectorOptionFunc(func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	})
}

// NewCollector creates a new Collector.
func NewCollector(source EventSource, stats Storage, opts ...CollectorOption) *Collector {
	c := &Collector{
		source:        source,
		stats:         stats,
		retention:     7 * 24 * time.Hour,
		flushInterval: time.Minute,
		logger:        slog.Default(),
		counters:      make(map[string]*Counters),
		ready:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// WaitReady blocks until the collector has subscribed to events.
func (c *Collector) WaitReady() {
	<-c.ready
}

// Start consumes events until ctx is cancelled, then flushes what is left.
func (c *Collector) Start(ctx context.Context) {
	events := c.source.Events()
	defer c.source.Unsubscribe(events)

	c.readyOnce.Do(func() { close(c.ready) })

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			c.drain(events)
			c.Flush(flushCtx)
			cancel()
			return
		case e := <-events:
			c.handleEvent(e)
		case <-ticker.C:
			c.Flush(ctx)
			c.prune(ctx)
		}
	}
}

func (c *Collector) drain(events <-chan core.Event) {
	for {
		select {
		case e := <-events:
			c.handleEvent(e)
		default:
			return
		}
	}
}

func (c *Collector) handleEvent(e core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := e.(type) {
	case *core.TaskTriggered:
		c.countersFor(ev.Scheduler).Triggered++
	case *core.TaskFailed:
		c.countersFor(ev.Scheduler).Failed++
	case *core.TriggerConflict:
		c.countersFor(ev.Scheduler).Conflicts++
	case *core.ConnectionLost:
		c.countersFor(ev.Scheduler).ConnectionFailures++
	}
}

func (c *Collector) countersFor(scheduler string) *Counters {
	counters, ok := c.counters[scheduler]
	if !ok {
		counters = &Counters{}
		c.counters[scheduler] = counters
	}
	return counters
}

// Flush writes accumulated counters to the stats storage.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.counters
	c.counters = make(map[string]*Counters)
	c.mu.Unlock()

	ts := time.Now().Truncate(time.Minute)
	for scheduler, counters := range batch {
		if counters.IsZero() {
			continue
		}
		if err := c.stats.AddCounters(ctx, scheduler, ts, *counters); err != nil {
			c.logger.Warn("failed to write trigger stats", "scheduler", scheduler, "error", err)
		}
	}
}

func (c *Collector) prune(ctx context.Context) {
	if c.retention > 0 {
		if _, err := c.stats.Prune(ctx, time.Now().Add(-c.retention)); err != nil {
			c.logger.Warn("failed to prune trigger stats", "error", err)
		}
	}
}
