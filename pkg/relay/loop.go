// Package relay is the readiness-driven engine that moves bytes between the
// tracked inputs, the pty master and the real terminal.
package relay

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nakkulla/iix/pkg/input"
	"github.com/nakkulla/iix/pkg/interfaces"
)

// DefaultInterval bounds each readiness wait
const DefaultInterval = time.Second

// State is the relay loop state
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop services every ready input until asked to stop or until servicing
// fails
type Loop struct {
	registry *input.Registry
	service  *Service
	poller   Poller
	interval time.Duration
	flag     interfaces.StopFlag
	logger   *zap.Logger

	state atomic.Int32
}

// NewLoop creates a loop in the idle state
func NewLoop(registry *input.Registry, service *Service, poller Poller, interval time.Duration, flag interfaces.StopFlag, logger *zap.Logger) *Loop {
	if poller == nil {
		poller = PollPoller{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		registry: registry,
		service:  service,
		poller:   poller,
		interval: interval,
		flag:     flag,
		logger:   logger,
	}
}

// State returns the current state
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	old := State(l.state.Swap(int32(s)))
	if old != s {
		l.logger.Debug("relay state", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

// Run relays until the stop flag clears (nil), a wait fails
// (*MultiplexError) or servicing fails (*ServiceError; standard input
// end-of-input matches ErrEndOfInput).
//
// Each wait is bounded by the loop interval so a stop request is observed
// within one interval even when no data arrives.
func (l *Loop) Run() error {
	if !l.registry.HasKind(input.KindStdin) || !l.registry.HasKind(input.KindMaster) {
		return ErrNotReady
	}

	l.setState(StateRunning)
	defer l.setState(StateStopped)

	for l.flag.Running() {
		ready, err := l.poller.Wait(l.registry, l.interval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return &MultiplexError{Call: l.poller.Name(), Err: err}
		}
		if len(ready) == 0 {
			continue
		}

		for _, in := range l.registry.Inputs() {
			if !ready[in.FD()] || !l.registry.Contains(in.Handle()) {
				continue
			}
			if err := l.service.Serve(in); err != nil {
				return err
			}
		}
	}

	l.logger.Debug("relay stop requested")
	return nil
}
