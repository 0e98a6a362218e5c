package worker

// retryState counts consecutive connection failures for one Run.
// It lives on the polling goroutine's stack and is never shared.
type retryState struct {
	attempts    int
	maxAttempts int
}

func newRetryState(maxAttempts int) retryState {
	return retryState{maxAttempts: maxAttempts}
}

// fail records a connection failure and returns the attempt number.
func (r *retryState) fail() int {
	r.attempts++
	return r.attempts
}

// reset forgets previous failures after a successful store interaction.
func (r *retryState) reset() {
	r.attempts = 0
}

// exhausted reports whether no more attempts are allowed.
func (r *retryState) exhausted() bool {
	return r.attempts >= r.maxAttempts
}
