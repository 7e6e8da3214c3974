package process

import "fmt"

// TerminalConfigError reports a failure to read or apply terminal attributes
type TerminalConfigError struct {
	Stage string
	Call  string
	Err   error
}

func (e *TerminalConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Call, e.Err)
}

func (e *TerminalConfigError) Unwrap() error { return e.Err }

// PtyAllocationError reports a failure to create the pty pair
type PtyAllocationError struct {
	Call string
	Err  error
}

func (e *PtyAllocationError) Error() string {
	return fmt.Sprintf("open pty: %s: %v", e.Call, e.Err)
}

func (e *PtyAllocationError) Unwrap() error { return e.Err }

// ProcessLaunchError reports a failure to create the child process
type ProcessLaunchError struct {
	Program string
	Err     error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launch %s: fork: %v", e.Program, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }

// ChildLaunchError reports a failure inside the child before it runs the
// program: starting the session or replacing the process image
type ChildLaunchError struct {
	Program string
	Call    string
	Err     error
}

func (e *ChildLaunchError) Error() string {
	return fmt.Sprintf("execute program %s: %s: %v", e.Program, e.Call, e.Err)
}

func (e *ChildLaunchError) Unwrap() error { return e.Err }
