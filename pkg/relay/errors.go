package relay

import (
	"errors"
	"fmt"

	"github.com/nakkulla/iix/pkg/input"
)

// ErrEndOfInput marks standard input reaching end-of-input, which ends the
// whole session
var ErrEndOfInput = errors.New("end of input")

// ErrHangup marks the pty master reporting that the child side is gone
var ErrHangup = errors.New("pty hung up")

// ErrNotReady is returned by Run when standard input or the pty master has
// not been admitted
var ErrNotReady = errors.New("standard input and pty master must be admitted before relaying")

// MultiplexError reports a readiness wait that failed for a reason other
// than interruption
type MultiplexError struct {
	Call string
	Err  error
}

func (e *MultiplexError) Error() string {
	return fmt.Sprintf("multiplex: %s: %v", e.Call, e.Err)
}

func (e *MultiplexError) Unwrap() error {
	return e.Err
}

// ServiceError reports a failed read or write on a tracked input, or
// standard input reaching end-of-input
type ServiceError struct {
	Input string
	Kind  input.Kind
	Call  string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %s: %v", e.Input, e.Call, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
