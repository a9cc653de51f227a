package process

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Limiter.Acquire and Runner.Run.
var (
	ErrCancelled     = errors.New("cancelled")
	ErrLimiterClosed = errors.New("process limiter closed")
)

// SpawnError reports that the child process could not be started (binary
// missing, not executable, pipe setup failed). Never retried.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WaitError reports a failure collecting the child's exit status that is not
// a normal non-zero exit.
type WaitError struct {
	Path string
	Err  error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait %s: %v", e.Path, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }
