package core

import "fmt"

// DefaultSchedulerName is used when no scheduler name is configured.
const DefaultSchedulerName = "scheduler"

const keyFormat = "redis-scheduler.%s"

// Identity names one logical scheduler. Schedulers with different names
// sharing one store never see each other's tasks.
type Identity struct {
	name string
}

// NewIdentity returns the identity of the scheduler called name.
func NewIdentity(name string) Identity {
	return Identity{name: name}
}

// Name returns the scheduler name.
func (i Identity) Name() string { return i.name }

// Key returns the store key holding the scheduler's pending tasks.
func (i Identity) Key() string { return fmt.Sprintf(keyFormat, i.name) }
