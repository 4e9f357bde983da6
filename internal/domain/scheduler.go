package domain

import "time"

// Scheduler runs fn once, no earlier than d from now. There is no cancellation
// handle; scheduled work re-checks its own preconditions when it fires.
// After returns ErrSchedulerStopped when the task will never run.
type Scheduler interface {
	After(d time.Duration, fn func()) error
}
