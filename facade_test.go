package redisscheduler_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	redisscheduler "github.com/jdziat/redis-scheduler"
	"github.com/jdziat/redis-scheduler/pkg/gormstore"
)

// collector records triggered task ids.
type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) TaskTriggered(_ context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, taskID)
	return nil
}

func (c *collector) Triggered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

// manualClock is a clock tests move by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupRedisScheduler starts a miniredis server and a scheduler on it.
func setupRedisScheduler(t *testing.T, clock redisscheduler.Clock, opts ...redisscheduler.Option) (*redisscheduler.Scheduler, *collector, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	listener := &collector{}
	base := []redisscheduler.Option{
		redisscheduler.WithLogger(quietLogger()),
		redisscheduler.WithPollingDelay(10 * time.Millisecond),
		redisscheduler.WithClock(clock),
	}
	s, err := redisscheduler.New(redisscheduler.NewRedisStore(client), listener, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, listener, server
}

func TestFacade_RedisTriggersInDueOrder(t *testing.T) {
	clock := &manualClock{now: time.Date(2018, 4, 5, 10, 0, 0, 0, time.UTC)}
	s, listener, server := setupRedisScheduler(t, clock)
	ctx := context.Background()

	require.NoError(t, s.ScheduleAt(ctx, "a", clock.Now().Add(1*time.Hour)))
	require.NoError(t, s.ScheduleAt(ctx, "b", clock.Now().Add(2*time.Hour)))

	members, err := server.ZMembers("redis-scheduler.scheduler")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	s.Start(ctx)
	assert.Never(t, func() bool { return len(listener.Triggered()) > 0 },
		100*time.Millisecond, 10*time.Millisecond)

	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return len(listener.Triggered()) == 2 },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, listener.Triggered())
	assert.False(t, server.Exists("redis-scheduler.scheduler"))
}

func TestFacade_RedisUnscheduleAll(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	s, _, server := setupRedisScheduler(t, clock, redisscheduler.WithSchedulerName("billing"))
	ctx := context.Background()

	require.NoError(t, s.RunNow(ctx, "x"))
	assert.True(t, server.Exists("redis-scheduler.billing"))

	require.NoError(t, s.UnscheduleAll(ctx))
	assert.False(t, server.Exists("redis-scheduler.billing"))
}

func TestFacade_RedisDownExhaustsRetries(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	s, _, server := setupRedisScheduler(t, clock, redisscheduler.WithMaxRetriesOnConnectionFailure(3))
	events := s.Events()
	defer s.Unsubscribe(events)

	server.Close()
	s.Start(context.Background())

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("polling loop did not give up")
	}
	assert.Equal(t, redisscheduler.StateStoppedByRetryExhaustion, s.State())

	lost := 0
	for {
		select {
		case e := <-events:
			switch ev := e.(type) {
			case *redisscheduler.ConnectionLost:
				lost++
			case *redisscheduler.SchedulerStopped:
				assert.ErrorIs(t, ev.Error, redisscheduler.ErrRetryExhausted)
				assert.Equal(t, 3, lost)
				return
			}
		case <-time.After(time.Second):
			t.Fatal("no SchedulerStopped event")
		}
	}
}

func TestFacade_ZeroTimeIsInvalid(t *testing.T) {
	s, err := redisscheduler.New(redisscheduler.NewMemoryStore(), &collector{})
	require.NoError(t, err)

	err = s.ScheduleAt(context.Background(), "t", time.Time{})

	assert.ErrorIs(t, err, redisscheduler.ErrInvalidArgument)
}

func TestFacade_GormStoreRecurringTask(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "facade.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	ctx := context.Background()
	store, err := redisscheduler.NewGormStore(ctx, db, gormstore.WithPoolConfig(gormstore.SQLitePoolConfig()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &manualClock{now: time.Date(2018, 4, 5, 10, 0, 0, 0, time.UTC)}
	var (
		s     *redisscheduler.Scheduler
		mu    sync.Mutex
		count int
	)
	listener := redisscheduler.ListenerFunc(func(ctx context.Context, taskID string) error {
		mu.Lock()
		count++
		mu.Unlock()
		_, err := s.ScheduleNext(ctx, taskID, redisscheduler.Every(time.Minute))
		return err
	})
	s, err = redisscheduler.New(store, listener,
		redisscheduler.WithClock(clock),
		redisscheduler.WithLogger(quietLogger()),
		redisscheduler.WithPollingDelay(5*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.RunNow(ctx, "heartbeat"))
	s.Start(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFacade_Schedules(t *testing.T) {
	from := time.Date(2018, 4, 5, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, from.Add(time.Hour), redisscheduler.Every(time.Hour).Next(from))
	assert.Equal(t, time.Date(2018, 4, 6, 9, 0, 0, 0, time.UTC), redisscheduler.Daily(9, 0).Next(from))

	sched, err := redisscheduler.ParseCron("*/15 * * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2018, 4, 5, 10, 15, 0, 0, time.UTC), sched.Next(from))

	_, err = redisscheduler.ParseCron("not a cron")
	assert.Error(t, err)
}

func TestFacade_ListenerSeesTrigger(t *testing.T) {
	clock := &manualClock{now: time.Date(2018, 4, 5, 10, 0, 0, 0, time.UTC)}
	var (
		mu  sync.Mutex
		got redisscheduler.Trigger
		id  string
	)
	listener := redisscheduler.ListenerFunc(func(ctx context.Context, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		got, _ = redisscheduler.TriggerFromContext(ctx)
		id = redisscheduler.TaskIDFromContext(ctx)
		return nil
	})
	s, err := redisscheduler.New(redisscheduler.NewMemoryStore(), listener,
		redisscheduler.WithClock(clock),
		redisscheduler.WithInstanceID("node-a"),
		redisscheduler.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.RunNow(ctx, "report"))
	triggered, err := s.TriggerNextTask(ctx)
	require.NoError(t, err)
	require.True(t, triggered)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "report", id)
	assert.Equal(t, "node-a", got.InstanceID)
	assert.Equal(t, "scheduler", got.Scheduler)
	assert.Equal(t, clock.Now(), got.TriggeredAt)
	assert.Empty(t, redisscheduler.TaskIDFromContext(ctx))
}
