package relay

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nakkulla/iix/pkg/config"
	"github.com/nakkulla/iix/pkg/input"
)

// Ready reports which descriptors a wait found readable
type Ready map[int]bool

// Poller waits until at least one tracked descriptor is readable or the
// timeout expires. An interrupted wait returns unix.EINTR unwrapped.
type Poller interface {
	Wait(registry *input.Registry, timeout time.Duration) (Ready, error)
	Name() string
}

// NewPoller returns the multiplexer named by config
func NewPoller(name string) (Poller, error) {
	switch name {
	case config.MultiplexerPoll, "":
		return PollPoller{}, nil
	case config.MultiplexerSelect:
		return SelectPoller{}, nil
	default:
		return nil, fmt.Errorf("unknown multiplexer %q", name)
	}
}

// PollPoller multiplexes with poll(2)
type PollPoller struct{}

// Name implements Poller
func (PollPoller) Name() string { return "poll" }

// Wait implements Poller. Hang-up and error conditions count as readable so
// the following read observes them.
func (PollPoller) Wait(registry *input.Registry, timeout time.Duration) (Ready, error) {
	fds := registry.Descriptors()
	pollFds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		pollFds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	count, err := unix.Poll(pollFds, int(timeout/time.Millisecond))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	ready := make(Ready, count)
	for _, pfd := range pollFds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			ready[int(pfd.Fd)] = true
		}
	}
	return ready, nil
}

// SelectPoller multiplexes with select(2). Its descriptor set is bounded by
// FD_SETSIZE and sized by the registry's highest descriptor.
type SelectPoller struct{}

// Name implements Poller
func (SelectPoller) Name() string { return "select" }

// Limit is the registry limit select(2) needs
func (SelectPoller) Limit() int { return unix.FD_SETSIZE }

// Wait implements Poller
func (SelectPoller) Wait(registry *input.Registry, timeout time.Duration) (Ready, error) {
	var set unix.FdSet
	set.Zero()
	fds := registry.Descriptors()
	for _, fd := range fds {
		set.Set(fd)
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	count, err := unix.Select(registry.Highest()+1, &set, nil, nil, &tv)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	ready := make(Ready, count)
	for _, fd := range fds {
		if set.IsSet(fd) {
			ready[fd] = true
		}
	}
	return ready, nil
}
