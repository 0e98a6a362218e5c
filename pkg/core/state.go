package core

// LoopState describes where a polling loop is in its lifecycle.
type LoopState string

const (
	StateIdle                     LoopState = "idle"    // Never started
	StateRunning                  LoopState = "running" // Polling
	StateStoppedByRequest         LoopState = "stopped_by_request"
	StateStoppedByRetryExhaustion LoopState = "stopped_by_retry_exhaustion"
	StateStoppedByError           LoopState = "stopped_by_error" // Unexpected non-connection error
)

// Terminal reports whether the loop will never poll again in this state.
func (s LoopState) Terminal() bool {
	switch s {
	case StateStoppedByRequest, StateStoppedByRetryExhaustion, StateStoppedByError:
		return true
	}
	return false
}
