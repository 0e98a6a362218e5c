// Package security provides validation, sanitization, and limits for the scheduler.
package security

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// Security limits and configuration
const (
	// MaxSchedulerNameLength is the maximum length for scheduler names
	MaxSchedulerNameLength = 200

	// MaxTaskIDLength is the maximum length in bytes for task identifiers
	MaxTaskIDLength = 1024

	// MaxRetries is the hard limit for consecutive connection retries
	MaxRetries = 1000

	// MinPollingDelay is the shortest accepted delay between two empty polls
	MinPollingDelay = time.Millisecond

	// MaxPollingDelay is the longest accepted delay between two empty polls
	MaxPollingDelay = 24 * time.Hour

	// MaxLoggedTaskIDLength is the number of runes of a task id kept in logs
	MaxLoggedTaskIDLength = 128
)

// validSchedulerName matches alphanumeric, hyphens, underscores, dots and colons
var validSchedulerName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.:]*$`)

// ValidateSchedulerName validates a scheduler name
func ValidateSchedulerName(name string) error {
	if name == "" {
		return core.InvalidArgument("scheduler name must not be empty")
	}
	if len(name) > MaxSchedulerNameLength {
		return core.InvalidArgument("scheduler name exceeds %d characters", MaxSchedulerNameLength)
	}
	if !validSchedulerName.MatchString(name) {
		return core.InvalidArgument("scheduler name %q contains invalid characters", name)
	}
	return nil
}

// ValidateTaskID validates a task identifier. Task ids are opaque; only
// emptiness and size are checked.
func ValidateTaskID(taskID string) error {
	if taskID == "" {
		return core.InvalidArgument("task id must not be empty")
	}
	if len(taskID) > MaxTaskIDLength {
		return core.InvalidArgument("task id exceeds %d bytes", MaxTaskIDLength)
	}
	return nil
}

// SanitizeTaskID strips control characters and truncates a task id for logging
func SanitizeTaskID(taskID string) string {
	if taskID == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(taskID))

	for _, r := range taskID {
		if r >= 32 && r != 127 {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxLoggedTaskIDLength {
		runes := []rune(result)
		result = string(runes[:MaxLoggedTaskIDLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures the retry count is within [1, MaxRetries]
func ClampRetries(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampPollingDelay ensures the polling delay is within limits
func ClampPollingDelay(d time.Duration) time.Duration {
	if d < MinPollingDelay {
		return MinPollingDelay
	}
	if d > MaxPollingDelay {
		return MaxPollingDelay
	}
	return d
}
