package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/memstore"
	"github.com/jdziat/redis-scheduler/pkg/scheduler"
)

// fakeSource hands out a single event channel.
type fakeSource struct {
	ch           chan core.Event
	unsubscribed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan core.Event, 16), unsubscribed: make(chan struct{})}
}

func (s *fakeSource) Events() <-chan core.Event        { return s.ch }
func (s *fakeSource) Unsubscribe(ch <-chan core.Event) { close(s.unsubscribed) }

func totals(t *testing.T, s Storage, scheduler string) Counters {
	t.Helper()
	history, err := s.History(context.Background(), scheduler, time.Time{}, time.Time{})
	require.NoError(t, err)

	var c Counters
	for _, row := range history {
		c.Triggered += row.Triggered
		c.Failed += row.Failed
		c.Conflicts += row.Conflicts
		c.ConnectionFailures += row.ConnectionFailures
	}
	return c
}

func TestCollector_CountsEventsAndFlushesOnStop(t *testing.T) {
	source := newFakeSource()
	store := newTestStorage(t)
	collector := NewCollector(source, store, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(done)
	}()
	collector.WaitReady()

	source.ch <- &core.TaskTriggered{Scheduler: "billing", TaskID: "a"}
	source.ch <- &core.TaskTriggered{Scheduler: "billing", TaskID: "b"}
	source.ch <- &core.TaskFailed{Scheduler: "billing", TaskID: "b", Error: errors.New("boom")}
	source.ch <- &core.TriggerConflict{Scheduler: "billing", TaskID: "c"}
	source.ch <- &core.ConnectionLost{Scheduler: "billing", Attempt: 1, MaxAttempts: 1}
	source.ch <- &core.SchedulerStopped{Scheduler: "billing", State: core.StateStoppedByRequest}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop")
	}

	assert.Equal(t, Counters{Triggered: 2, Failed: 1, Conflicts: 1, ConnectionFailures: 1}, totals(t, store, "billing"))
	select {
	case <-source.unsubscribed:
	default:
		t.Fatal("collector did not unsubscribe")
	}
}

func TestCollector_FlushSkipsEmptyCounters(t *testing.T) {
	store := newTestStorage(t)
	collector := NewCollector(newFakeSource(), store)

	collector.Flush(context.Background())

	history, err := store.History(context.Background(), "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCollector_WithScheduler(t *testing.T) {
	store := newTestStorage(t)
	listener := core.ListenerFunc(func(context.Context, string) error { return nil })
	sched, err := scheduler.New(memstore.New(), listener,
		scheduler.WithSchedulerName("reports"),
		scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	collector := NewCollector(sched, store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(done)
	}()
	collector.WaitReady()

	require.NoError(t, sched.RunNow(ctx, "daily-report"))
	triggered, err := sched.TriggerNextTask(ctx)
	require.NoError(t, err)
	require.True(t, triggered)

	cancel()
	<-done

	assert.Equal(t, int64(1), totals(t, store, "reports").Triggered)
}
