package ratelimiter

import (
	"encoding/json"
	"fmt"
	"time"
)

// FloodWait is the denial signal returned by Acquire once an identifier has
// exhausted its quota. It is the expected steady-state outcome for throttled
// callers, not a transient fault: the limiter never retries it internally, and
// callers must branch on it explicitly (typically via errors.As) and defer the
// action for RetryAfter.
type FloodWait struct {
	// Message is a human-readable description of the denial.
	Message string
	// Rate is the configured number of permitted actions per window.
	Rate int
	// Period is the configured window length.
	Period time.Duration
	// RetryAfter is the time until the next permitted attempt. For a freshly
	// denied identifier this is the configured retry-after value; for an
	// identifier that is already restricted it is the live remaining time of
	// the restriction marker at call time.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter in whole seconds, rounded up, so a
// denial whose marker has under a second left still advertises a positive
// wait instead of zero.
func (e *FloodWait) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter > 0 && e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Error implements the error interface.
func (e *FloodWait) Error() string {
	return fmt.Sprintf("%s: retry after %ds", e.Message, e.RetryAfterSeconds())
}

// Map returns the wire representation of the denial, with the rate rendered as
// "<rate>/<period-seconds>" and retry_after in whole seconds, rounded up.
func (e *FloodWait) Map() map[string]any {
	return map[string]any{
		"message":     e.Message,
		"rate":        fmt.Sprintf("%d/%d", e.Rate, int(e.Period.Seconds())),
		"retry_after": e.RetryAfterSeconds(),
	}
}

// MarshalJSON implements json.Marshaler using the Map representation.
func (e *FloodWait) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}
