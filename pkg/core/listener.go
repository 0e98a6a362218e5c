package core

import "context"

// TaskTriggerListener is called by the scheduler once a task is due.
//
// TaskTriggered runs synchronously on the polling goroutine. A returned error
// (or a panic) is logged; the task is not scheduled again.
type TaskTriggerListener interface {
	TaskTriggered(ctx context.Context, taskID string) error
}

// ListenerFunc adapts a function to the TaskTriggerListener interface.
type ListenerFunc func(ctx context.Context, taskID string) error

// TaskTriggered calls f(ctx, taskID).
func (f ListenerFunc) TaskTriggered(ctx context.Context, taskID string) error {
	return f(ctx, taskID)
}
