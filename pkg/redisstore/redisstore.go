// Package redisstore provides a Driver backed by Redis through go-redis.
//
// Every Execute runs on one dedicated connection taken from the client's
// pool so that WATCH, MULTI and EXEC apply to the same connection.
package redisstore

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// Driver executes scheduler commands on a Redis server.
type Driver struct {
	client redis.UniversalClient
}

var _ core.Driver = (*Driver)(nil)

// New creates a Driver using client. The caller owns the client.
func New(client redis.UniversalClient) *Driver {
	return &Driver{client: client}
}

// Open creates a Driver with a new single-node client.
func Open(opts *redis.Options) *Driver {
	return New(redis.NewClient(opts))
}

// Client returns the underlying client.
func (d *Driver) Client() redis.UniversalClient {
	return d.client
}

// Ping checks connectivity.
func (d *Driver) Ping(ctx context.Context) error {
	return classify(d.client.Ping(ctx).Err())
}

// Close closes the underlying client.
func (d *Driver) Close() error {
	return d.client.Close()
}

// Execute runs fn on a dedicated connection. The connection is returned to
// the pool afterwards, with any remaining WATCH cleared.
func (d *Driver) Execute(ctx context.Context, fn func(core.Commands) error) error {
	err := d.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(&commands{tx: tx})
	})
	return classify(err)
}

type commands struct {
	tx   *redis.Tx
	pipe redis.Pipeliner
}

// cmdable returns the pipeline while a transaction is open so that
// mutations are queued instead of sent.
func (c *commands) cmdable() redis.Cmdable {
	if c.pipe != nil {
		return c.pipe
	}
	return c.tx
}

func (c *commands) AddToSetWithScore(ctx context.Context, key, taskID string, score int64) error {
	return classify(c.cmdable().ZAdd(ctx, key, redis.Z{Score: float64(score), Member: taskID}).Err())
}

func (c *commands) RemoveFromSet(ctx context.Context, key, taskID string) error {
	return classify(c.cmdable().ZRem(ctx, key, taskID).Err())
}

func (c *commands) Remove(ctx context.Context, key string) error {
	return classify(c.cmdable().Del(ctx, key).Err())
}

func (c *commands) Watch(ctx context.Context, key string) error {
	return classify(c.tx.Watch(ctx, key).Err())
}

func (c *commands) Unwatch(ctx context.Context) error {
	return classify(c.tx.Unwatch(ctx).Err())
}

func (c *commands) Multi(ctx context.Context) error {
	c.pipe = c.tx.TxPipeline()
	return nil
}

func (c *commands) Exec(ctx context.Context) (bool, error) {
	if c.pipe == nil {
		return false, core.ErrExecWithoutMulti
	}
	pipe := c.pipe
	c.pipe = nil

	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (c *commands) FirstByScore(ctx context.Context, key string, minScore, maxScore int64) (string, bool, error) {
	members, err := c.tx.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   formatScore(minScore),
		Max:   formatScore(maxScore),
		Count: 1,
	}).Result()
	if err != nil {
		return "", false, classify(err)
	}
	if len(members) == 0 {
		return "", false, nil
	}
	return members[0], true, nil
}

func formatScore(score int64) string {
	return strconv.FormatInt(score, 10)
}

// classify marks errors caused by the connection rather than the command.
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if core.IsConnectionFailure(err) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return core.ConnectionFailure(err)
	}
	return err
}
