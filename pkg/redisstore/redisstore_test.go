package redisstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/internal/drivertest"
)

func newTestDriver(t *testing.T) (*Driver, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	d := Open(&redis.Options{
		Addr:        server.Addr(),
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = d.Close() })
	return d, server
}

func TestDriver_CommandPort(t *testing.T) {
	drivertest.Run(t, func(t *testing.T) core.Driver {
		d, _ := newTestDriver(t)
		return d
	})
}

func TestDriver_UsesSortedSet(t *testing.T) {
	d, server := newTestDriver(t)
	ctx := context.Background()

	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		return c.AddToSetWithScore(ctx, "redis-scheduler.scheduler", "mytask", 1523000000000)
	}))

	score, err := server.ZScore("redis-scheduler.scheduler", "mytask")
	require.NoError(t, err)
	assert.Equal(t, float64(1523000000000), score)
}

func TestDriver_Ping(t *testing.T) {
	d, _ := newTestDriver(t)

	assert.NoError(t, d.Ping(context.Background()))
}

func TestDriver_ServerDownIsConnectionFailure(t *testing.T) {
	d, server := newTestDriver(t)
	ctx := context.Background()
	server.Close()

	err := d.Execute(ctx, func(c core.Commands) error {
		_, _, err := c.FirstByScore(ctx, "k", 0, 100)
		return err
	})

	assert.True(t, core.IsConnectionFailure(err), "got %v", err)
	assert.True(t, core.IsConnectionFailure(d.Ping(ctx)))
}

func TestDriver_ClosedClientIsConnectionFailure(t *testing.T) {
	d, _ := newTestDriver(t)
	require.NoError(t, d.Close())

	err := d.Execute(context.Background(), func(core.Commands) error { return nil })

	assert.True(t, core.IsConnectionFailure(err), "got %v", err)
}

func TestDriver_CommandErrorIsNotConnectionFailure(t *testing.T) {
	d, server := newTestDriver(t)
	ctx := context.Background()
	require.NoError(t, server.Set("k", "not a sorted set"))

	err := d.Execute(ctx, func(c core.Commands) error {
		_, _, err := c.FirstByScore(ctx, "k", 0, 100)
		return err
	})

	require.Error(t, err)
	assert.False(t, core.IsConnectionFailure(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		conn bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"closed", redis.ErrClosed, true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset", syscall.ECONNRESET, true},
		{"tx failed", redis.TxFailedErr, false},
		{"other", errors.New("WRONGTYPE"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conn, core.IsConnectionFailure(classify(tt.err)))
		})
	}
}
