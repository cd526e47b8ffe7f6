package workflow

import (
	"errors"
	"fmt"
	"time"
)

// Engine errors.
var (
	// ErrAlreadyRunning is returned by Run when a run is in flight.
	// The in-flight run is unaffected.
	ErrAlreadyRunning = errors.New("workflow is already running, wait for it to finish before running again")

	// ErrRunCanceled is returned when the caller's context ends a run.
	ErrRunCanceled = errors.New("run was canceled")
)

// TimeoutError is returned by Run when the bounded wait for the runners
// expires. All runners are cancelled before it is returned, but the run's
// result is undefined and the instance should not be reused blindly.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Timeout)
}
