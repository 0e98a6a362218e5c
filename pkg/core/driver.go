package core

import "context"

// Driver gives access to a backing store able to hold scheduled tasks.
//
// Execute runs fn against a single store session. A session is bound to one
// connection for its whole duration, so a Watch issued through the session
// applies to the Multi/Exec issued later through the same session.
// Connection problems must be reported as errors matching ErrConnectionFailure.
type Driver interface {
	Execute(ctx context.Context, fn func(Commands) error) error
}

// Commands is the command set the scheduler needs from a store session.
//
// Mutations issued between Multi and Exec are queued and only applied by Exec.
type Commands interface {
	// AddToSetWithScore inserts taskID in the sorted set at key, replacing
	// its score if it is already present.
	AddToSetWithScore(ctx context.Context, key, taskID string, score int64) error

	// RemoveFromSet removes taskID from the sorted set at key. Removing an
	// absent member is not an error.
	RemoveFromSet(ctx context.Context, key, taskID string) error

	// Remove deletes the whole sorted set at key.
	Remove(ctx context.Context, key string) error

	// Watch marks key so that a later Exec aborts if key was modified.
	Watch(ctx context.Context, key string) error

	// Unwatch forgets every watched key of the session.
	Unwatch(ctx context.Context) error

	// Multi starts queuing mutations.
	Multi(ctx context.Context) error

	// Exec applies the queued mutations atomically. It returns false, and
	// applies nothing, when a watched key changed since it was watched.
	Exec(ctx context.Context) (bool, error)

	// FirstByScore returns the member with the lowest score within
	// [minScore, maxScore], if any.
	FirstByScore(ctx context.Context, key string, minScore, maxScore int64) (string, bool, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, fn func(Commands) error) error

// Execute calls f(ctx, fn).
func (f DriverFunc) Execute(ctx context.Context, fn func(Commands) error) error {
	return f(ctx, fn)
}
