// Package drivertest holds behavior checks shared by every core.Driver adapter.
package drivertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

const (
	key      = "redis-scheduler.drivertest"
	otherKey = "redis-scheduler.drivertest-other"
)

// Factory returns a fresh, empty driver for one test.
type Factory func(t *testing.T) core.Driver

// Run checks the command-port behavior the scheduler relies on.
func Run(t *testing.T, newDriver Factory) {
	t.Run("UpsertReplacesScore", func(t *testing.T) { testUpsert(t, newDriver(t)) })
	t.Run("FirstByScoreHonorsRange", func(t *testing.T) { testFirstByScore(t, newDriver(t)) })
	t.Run("RemoveFromSet", func(t *testing.T) { testRemoveFromSet(t, newDriver(t)) })
	t.Run("RemoveClearsKey", func(t *testing.T) { testRemove(t, newDriver(t)) })
	t.Run("KeysAreIsolated", func(t *testing.T) { testIsolation(t, newDriver(t)) })
	t.Run("ExecAppliesQueuedCommands", func(t *testing.T) { testExecApplies(t, newDriver(t)) })
	t.Run("ExecAbortsOnConcurrentChange", func(t *testing.T) { testExecConflict(t, newDriver(t)) })
	t.Run("ExecAbortsOnConcurrentClear", func(t *testing.T) { testExecConflictOnClear(t, newDriver(t)) })
	t.Run("UnwatchForgetsKeys", func(t *testing.T) { testUnwatch(t, newDriver(t)) })
	t.Run("ExecWithoutMulti", func(t *testing.T) { testExecWithoutMulti(t, newDriver(t)) })
}

func add(t *testing.T, d core.Driver, k, id string, score int64) {
	t.Helper()
	require.NoError(t, d.Execute(context.Background(), func(c core.Commands) error {
		return c.AddToSetWithScore(context.Background(), k, id, score)
	}))
}

func first(t *testing.T, d core.Driver, k string, minScore, maxScore int64) (string, bool) {
	t.Helper()
	var (
		id    string
		found bool
	)
	require.NoError(t, d.Execute(context.Background(), func(c core.Commands) error {
		var err error
		id, found, err = c.FirstByScore(context.Background(), k, minScore, maxScore)
		return err
	}))
	return id, found
}

func testUpsert(t *testing.T, d core.Driver) {
	add(t, d, key, "mytask", 500)
	add(t, d, key, "mytask", 100)

	id, found := first(t, d, key, 0, 200)
	assert.True(t, found)
	assert.Equal(t, "mytask", id)

	_, found = first(t, d, key, 300, 1000)
	assert.False(t, found, "old score must be replaced, not duplicated")
}

func testFirstByScore(t *testing.T, d core.Driver) {
	_, found := first(t, d, key, 0, 1000)
	assert.False(t, found)

	add(t, d, key, "third", 300)
	add(t, d, key, "first", 100)
	add(t, d, key, "second", 200)

	id, found := first(t, d, key, 0, 1000)
	assert.True(t, found)
	assert.Equal(t, "first", id)

	id, found = first(t, d, key, 150, 1000)
	assert.True(t, found)
	assert.Equal(t, "second", id)

	id, found = first(t, d, key, 0, 100)
	assert.True(t, found, "range bounds are inclusive")
	assert.Equal(t, "first", id)

	_, found = first(t, d, key, 0, 99)
	assert.False(t, found)
}

func testRemoveFromSet(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)

	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		if err := c.RemoveFromSet(ctx, key, "unknown"); err != nil {
			return err
		}
		return c.RemoveFromSet(ctx, key, "a")
	}))

	_, found := first(t, d, key, 0, 1000)
	assert.False(t, found)
}

func testRemove(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)
	add(t, d, key, "b", 200)

	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		return c.Remove(ctx, key)
	}))
	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		return c.Remove(ctx, key)
	}), "clearing an empty key is not an error")

	_, found := first(t, d, key, 0, 1000)
	assert.False(t, found)
}

func testIsolation(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)
	add(t, d, otherKey, "b", 50)

	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		return c.Remove(ctx, otherKey)
	}))

	id, found := first(t, d, key, 0, 1000)
	assert.True(t, found)
	assert.Equal(t, "a", id)
}

func testExecApplies(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)

	var committed bool
	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		if err := c.Watch(ctx, key); err != nil {
			return err
		}
		if err := c.Multi(ctx); err != nil {
			return err
		}
		if err := c.RemoveFromSet(ctx, key, "a"); err != nil {
			return err
		}

		// Queued, not applied yet.
		id, found := first(t, d, key, 0, 1000)
		assert.True(t, found)
		assert.Equal(t, "a", id)

		var err error
		committed, err = c.Exec(ctx)
		return err
	}))

	assert.True(t, committed)
	_, found := first(t, d, key, 0, 1000)
	assert.False(t, found)
}

func testExecConflict(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)

	var committed bool
	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		if err := c.Watch(ctx, key); err != nil {
			return err
		}

		// Another session changes the namespace after the watch.
		add(t, d, key, "b", 50)

		if err := c.Multi(ctx); err != nil {
			return err
		}
		if err := c.RemoveFromSet(ctx, key, "a"); err != nil {
			return err
		}
		var err error
		committed, err = c.Exec(ctx)
		return err
	}))

	assert.False(t, committed)
	id, found := first(t, d, key, 100, 100)
	assert.True(t, found, "aborted transaction must not apply the removal")
	assert.Equal(t, "a", id)
}

func testExecConflictOnClear(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)

	var committed bool
	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		if err := c.Watch(ctx, key); err != nil {
			return err
		}
		require.NoError(t, d.Execute(ctx, func(other core.Commands) error {
			return other.RemoveFromSet(ctx, key, "a")
		}))
		if err := c.Multi(ctx); err != nil {
			return err
		}
		if err := c.RemoveFromSet(ctx, key, "a"); err != nil {
			return err
		}
		var err error
		committed, err = c.Exec(ctx)
		return err
	}))

	assert.False(t, committed)
}

func testUnwatch(t *testing.T, d core.Driver) {
	ctx := context.Background()
	add(t, d, key, "a", 100)

	var committed bool
	require.NoError(t, d.Execute(ctx, func(c core.Commands) error {
		if err := c.Watch(ctx, key); err != nil {
			return err
		}
		if err := c.Unwatch(ctx); err != nil {
			return err
		}
		add(t, d, key, "b", 50)

		if err := c.Multi(ctx); err != nil {
			return err
		}
		if err := c.RemoveFromSet(ctx, key, "a"); err != nil {
			return err
		}
		var err error
		committed, err = c.Exec(ctx)
		return err
	}))

	assert.True(t, committed)
	id, found := first(t, d, key, 0, 1000)
	assert.True(t, found)
	assert.Equal(t, "b", id)
}

func testExecWithoutMulti(t *testing.T, d core.Driver) {
	ctx := context.Background()

	err := d.Execute(ctx, func(c core.Commands) error {
		_, err := c.Exec(ctx)
		return err
	})

	assert.Error(t, err)
	assert.False(t, core.IsConnectionFailure(err))
}
