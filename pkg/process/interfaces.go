package process

import (
	"os"
	"os/exec"
)

// Launcher starts the child program on the pty slave
type Launcher interface {
	Launch(program Program, slave *os.File) (*exec.Cmd, error)
}
