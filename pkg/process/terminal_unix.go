//go:build linux || darwin
// +build linux darwin

package process

import (
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the invoking terminal, switched to raw mode for the session.
// The attributes captured by CaptureAndRaw are applied again by Restore,
// exactly once.
type Terminal struct {
	fd int

	mu       sync.Mutex
	saved    unix.Termios
	restored bool
}

// CaptureAndRaw saves the attributes of the terminal on fd and switches it to
// raw mode
func CaptureAndRaw(fd int) (*Terminal, error) {
	if err := CheckTerminal(fd); err != nil {
		return nil, err
	}

	saved, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, &TerminalConfigError{Stage: "reconfigure terminal", Call: "tcgetattr", Err: err}
	}

	raw := *saved
	makeRaw(&raw)

	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, &raw); err != nil {
		return nil, &TerminalConfigError{Stage: "reconfigure terminal", Call: "tcsetattr", Err: err}
	}

	return &Terminal{fd: fd, saved: *saved}, nil
}

// CheckTerminal fails with a *TerminalConfigError unless fd is a terminal
func CheckTerminal(fd int) error {
	if !term.IsTerminal(fd) {
		return &TerminalConfigError{Stage: "reconfigure terminal", Call: "isatty", Err: unix.ENOTTY}
	}
	return nil
}

// makeRaw is the cfmakeraw(3) transformation
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
}

// FD returns the terminal descriptor
func (t *Terminal) FD() int {
	return t.fd
}

// Restore re-applies the saved attributes. Calls after the first are no-ops.
func (t *Terminal) Restore() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.restored {
		return nil
	}
	t.restored = true

	saved := t.saved
	if err := unix.IoctlSetTermios(t.fd, ioctlWriteTermios, &saved); err != nil {
		return &TerminalConfigError{Stage: "reset terminal", Call: "tcsetattr", Err: err}
	}
	return nil
}

// Snapshot returns the current attributes of the terminal on fd
func Snapshot(fd int) (*unix.Termios, error) {
	return unix.IoctlGetTermios(fd, ioctlReadTermios)
}
