package process

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// SessionEnv is set in the child's environment to the session id
const SessionEnv = "IIX_SESSION"

// Program is the child's executable and arguments
type Program struct {
	Name string
	Args []string
	Env  []string
}

// ExecLauncher starts programs with os/exec
type ExecLauncher struct{}

// Ensure ExecLauncher implements Launcher
var _ Launcher = ExecLauncher{}

// Launch starts program with its standard streams on slave. The child starts
// a new session and the slave (its descriptor 0) becomes its controlling
// terminal. Nothing registered for the parent's teardown runs in the child.
func (ExecLauncher) Launch(program Program, slave *os.File) (*exec.Cmd, error) {
	// #nosec G204 -- running the user's program is the point
	cmd := exec.Command(program.Name, program.Args...)
	cmd.Env = program.Env
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		return nil, launchError(program.Name, err)
	}
	return cmd, nil
}

// launchError separates failures to create the process from failures of the
// child to start its session or exec the program
func launchError(name string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.ENOMEM:
			return &ProcessLaunchError{Program: name, Err: err}
		case syscall.EPERM:
			return &ChildLaunchError{Program: name, Call: "setsid", Err: err}
		}
	}
	return &ChildLaunchError{Program: name, Call: "execvp", Err: err}
}

// sessionEnv returns env with SessionEnv set to id, dropping any inherited value
func sessionEnv(env []string, id string) []string {
	out := make([]string, 0, len(env)+1)
	for _, e := range env {
		if !strings.HasPrefix(e, SessionEnv+"=") {
			out = append(out, e)
		}
	}
	return append(out, SessionEnv+"="+id)
}
