package core

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidArgument   = errors.New("scheduler: invalid argument")
	ErrConnectionFailure = errors.New("scheduler: store connection failure")
	ErrRetryExhausted    = errors.New("scheduler: maximum connection retries reached")
	ErrExecWithoutMulti  = errors.New("scheduler: exec called without multi")
)

// ConnectionError wraps an error raised by a store client when it could not
// talk to the store. It matches ErrConnectionFailure with errors.Is.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store connection failure: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConnectionFailure.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailure
}

// ConnectionFailure wraps err as a ConnectionError. It returns nil for a nil
// error and err itself when err already is a connection failure.
func ConnectionFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionFailure) {
		return err
	}
	return &ConnectionError{Err: err}
}

// IsConnectionFailure reports whether err is a store connection failure.
func IsConnectionFailure(err error) bool {
	return errors.Is(err, ErrConnectionFailure)
}

// InvalidArgument returns an error wrapping ErrInvalidArgument with a reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
