package core

import "time"

// Event is the interface for all scheduler events.
type Event interface {
	eventMarker()
}

// TaskTriggered is emitted when this instance claimed a task and handed it
// to the listener.
type TaskTriggered struct {
	Scheduler string
	TaskID    string
	Timestamp time.Time
}

func (*TaskTriggered) eventMarker() {}

// TaskFailed is emitted when the listener returned an error or panicked.
type TaskFailed struct {
	Scheduler string
	TaskID    string
	Error     error
	Timestamp time.Time
}

func (*TaskFailed) eventMarker() {}

// TriggerConflict is emitted when the claim transaction aborted because the
// namespace changed concurrently.
type TriggerConflict struct {
	Scheduler string
	TaskID    string
	Timestamp time.Time
}

func (*TriggerConflict) eventMarker() {}

// ConnectionLost is emitted on every connection failure seen by the polling loop.
type ConnectionLost struct {
	Scheduler   string
	Attempt     int
	MaxAttempts int
	Error       error
	Timestamp   time.Time
}

func (*ConnectionLost) eventMarker() {}

// SchedulerStopped is emitted once the polling loop has exited.
type SchedulerStopped struct {
	Scheduler string
	State     LoopState
	Error     error
	Timestamp time.Time
}

func (*SchedulerStopped) eventMarker() {}
