package runner

import (
	"errors"
	"fmt"
)

// ErrRunningTimeout is returned when an accepted mission never reports running.
var ErrRunningTimeout = errors.New("mission did not start running in time")

// StartError reports that every start attempt of a trial failed.
type StartError struct {
	Trial    int
	Attempts int
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("error starting mission %d after %d attempts: %v", e.Trial, e.Attempts, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
