package jobs

import "errors"

// ErrNotDispatched is returned when a job is cancelled or times out before it
// obtained its lock. Nothing was changed.
var ErrNotDispatched = errors.New("jobs: job not dispatched")
