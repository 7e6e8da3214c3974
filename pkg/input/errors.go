package input

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a descriptor is admitted twice
var ErrDuplicate = errors.New("descriptor already tracked")

// ErrUnknown is returned when removing a handle the registry does not hold
var ErrUnknown = errors.New("input not tracked")

// NotAPipeError reports a pipe source whose path or descriptor is not a FIFO
type NotAPipeError struct {
	Path string
}

func (e *NotAPipeError) Error() string {
	return fmt.Sprintf("add pipe input: %s: not a pipe", e.Path)
}

// AllocationError reports an input that could not be given a slot in the
// readiness set
type AllocationError struct {
	FD    int
	Limit int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate input: descriptor %d exceeds readiness set limit %d", e.FD, e.Limit)
}

// SourceError wraps a failed open, stat or fcntl on a source
type SourceError struct {
	Stage string
	Call  string
	Path  string
	Err   error
}

func (e *SourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Call, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Stage, e.Call, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
