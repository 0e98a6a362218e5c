// Package taskctx gives listeners access to the trigger they are handling.
package taskctx

import (
	"context"
	"time"
)

// Trigger describes one triggered task.
type Trigger struct {
	TaskID      string
	Scheduler   string
	InstanceID  string
	TriggeredAt time.Time
}

type triggerKey struct{}

// WithTrigger returns a copy of ctx carrying t.
func WithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, t)
}

// TriggerFromContext returns the trigger being handled, if any.
func TriggerFromContext(ctx context.Context) (Trigger, bool) {
	t, ok := ctx.Value(triggerKey{}).(Trigger)
	return t, ok
}

// TaskIDFromContext returns the id of the task being handled, or an empty
// string outside a listener.
func TaskIDFromContext(ctx context.Context) string {
	t, _ := TriggerFromContext(ctx)
	return t.TaskID
}
