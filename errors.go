package redisscheduler

import "github.com/jdziat/redis-scheduler/pkg/core"

// Error variables
var (
	ErrInvalidArgument   = core.ErrInvalidArgument
	ErrConnectionFailure = core.ErrConnectionFailure
	ErrRetryExhausted    = core.ErrRetryExhausted
	ErrExecWithoutMulti  = core.ErrExecWithoutMulti
)

// ConnectionFailure wraps err so that it matches ErrConnectionFailure.
// Custom drivers use it for errors caused by the connection to the store.
func ConnectionFailure(err error) error {
	return core.ConnectionFailure(err)
}

// IsConnectionFailure reports whether err is a store connection failure.
func IsConnectionFailure(err error) bool {
	return core.IsConnectionFailure(err)
}
