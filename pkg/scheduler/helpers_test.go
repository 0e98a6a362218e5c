package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/memstore"
)

// stubClock is a settable clock starting at 2018-04-05 10:00 UTC.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2018, 4, 5, 10, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) In(d time.Duration) time.Time {
	return c.Now().Add(d)
}

func (c *stubClock) FastForward(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingListener records every triggered task id in order.
type recordingListener struct {
	mu  sync.Mutex
	ids []string
	fn  func(ctx context.Context, taskID string) error
}

func (l *recordingListener) TaskTriggered(ctx context.Context, taskID string) error {
	l.mu.Lock()
	l.ids = append(l.ids, taskID)
	fn := l.fn
	l.mu.Unlock()
	if fn != nil {
		return fn(ctx, taskID)
	}
	return nil
}

func (l *recordingListener) Triggered() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...)
}

// fakeDriver wraps a driver to count sessions, inject failures and run a
// hook right before Exec.
type fakeDriver struct {
	inner      core.Driver
	calls      atomic.Int64
	failWith   func(call int64) error
	beforeExec func()
}

func (d *fakeDriver) Execute(ctx context.Context, fn func(core.Commands) error) error {
	n := d.calls.Add(1)
	if d.failWith != nil {
		if err := d.failWith(n); err != nil {
			return err
		}
	}
	return d.inner.Execute(ctx, func(c core.Commands) error {
		if d.beforeExec != nil {
			return fn(&hookedCommands{Commands: c, beforeExec: d.beforeExec})
		}
		return fn(c)
	})
}

type hookedCommands struct {
	core.Commands
	beforeExec func()
}

func (c *hookedCommands) Exec(ctx context.Context) (bool, error) {
	c.beforeExec()
	return c.Commands.Exec(ctx)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *memstore.Store
	driver   *fakeDriver
	clock    *stubClock
	listener *recordingListener
	sched    *Scheduler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		clock:    newStubClock(),
		listener: &recordingListener{},
	}
	f.driver = &fakeDriver{inner: f.store}

	base := []Option{
		WithClock(f.clock),
		WithLogger(quietLogger()),
		WithPollingDelay(10 * time.Millisecond),
	}
	s, err := New(f.driver, f.listener, append(base, opts...)...)
	require.NoError(t, err)
	f.sched = s
	t.Cleanup(func() { _ = s.Close() })
	return f
}

func (f *fixture) waitTriggered(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.listener.Triggered()) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d triggered tasks", n)
}

func waitDone(t *testing.T, s *Scheduler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("polling loop did not exit")
	}
}
