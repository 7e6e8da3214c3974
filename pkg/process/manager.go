package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nakkulla/iix/pkg/config"
	"github.com/nakkulla/iix/pkg/diag"
	"github.com/nakkulla/iix/pkg/input"
	"github.com/nakkulla/iix/pkg/interfaces"
	"github.com/nakkulla/iix/pkg/relay"
)

// Exit statuses
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Manager owns one relay session: the invoking terminal, the pty, the child
// and the input registry. Close releases everything it acquired, whatever
// point startup or the relay reached.
type Manager struct {
	config   *config.Config
	sink     diag.Sink
	logger   *zap.Logger
	flag     interfaces.StopFlag
	launcher Launcher
	id       string

	stdin  *os.File
	stdout *os.File

	mu        sync.Mutex
	pending   []input.Source
	terminal  *Terminal
	pty       *Pty
	cmd       *exec.Cmd
	registry  *input.Registry
	poller    relay.Poller
	loop      *relay.Loop
	exitCode  int
	childExit int
	started   bool
	closed    bool
}

// Ensure Manager implements SessionRunner
var _ interfaces.SessionRunner = (*Manager)(nil)

// Option configures a Manager
type Option func(*Manager)

// WithTerminal replaces the invoking terminal's standard input and output
func WithTerminal(stdin, stdout *os.File) Option {
	return func(m *Manager) {
		m.stdin = stdin
		m.stdout = stdout
	}
}

// WithLauncher replaces the child launcher
func WithLauncher(l Launcher) Option {
	return func(m *Manager) {
		m.launcher = l
	}
}

// NewManager creates a session manager. flag is polled by the relay loop.
func NewManager(cfg *config.Config, sink diag.Sink, logger *zap.Logger, flag interfaces.StopFlag, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poller, err := relay.NewPoller(cfg.Multiplexer)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	m := &Manager{
		config:    cfg,
		sink:      sink,
		logger:    logger.With(zap.String("session", id)),
		flag:      flag,
		launcher:  ExecLauncher{},
		id:        id,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		poller:    poller,
		childExit: -1,
	}
	for _, opt := range opts {
		opt(m)
	}

	regOpts := []input.Option{input.WithLogger(m.logger)}
	if sp, ok := poller.(relay.SelectPoller); ok {
		regOpts = append(regOpts, input.WithLimit(sp.Limit()))
	}
	m.registry = input.NewRegistry(regOpts...)

	return m, nil
}

// ID returns the session id exported to the child as IIX_SESSION
func (m *Manager) ID() string {
	return m.id
}

// AddFile opens a regular file to be relayed into the pty once the session
// starts
func (m *Manager) AddFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := input.OpenFile(path)
	if err != nil {
		return m.fail("startup", err)
	}
	m.pending = append(m.pending, src)
	return nil
}

// AddPipe opens a named pipe to be relayed into the pty once the session
// starts. Paths that are not FIFOs fail with *input.NotAPipeError.
func (m *Manager) AddPipe(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := input.OpenPipe(path)
	if err != nil {
		return m.fail("startup", err)
	}
	m.pending = append(m.pending, src)
	return nil
}

// Start switches the terminal to raw mode, allocates the pty, launches
// program on it and seeds the registry with standard input, the pty master
// and the queued sources, in that order.
func (m *Manager) Start(program Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("session already started")
	}
	m.started = true

	stdinFD := int(m.stdin.Fd())

	terminal, err := CaptureAndRaw(stdinFD)
	if err != nil {
		return m.fail("startup", err)
	}
	m.terminal = terminal

	p, err := AllocatePty()
	if err != nil {
		return m.fail("startup", err)
	}
	m.pty = p

	if m.config.InheritSize {
		if err := p.CopySize(m.stdin); err != nil {
			m.logger.Debug("initial size not copied", zap.Error(err))
		}
	}

	if program.Env == nil {
		program.Env = os.Environ()
	}
	program.Env = sessionEnv(program.Env, m.id)

	cmd, err := m.launcher.Launch(program, p.Slave)
	if err != nil {
		return m.fail("startup", err)
	}
	m.cmd = cmd
	m.logger.Debug("child started", zap.String("program", program.Name), zap.Int("pid", cmd.Process.Pid))

	if err := p.CloseSlave(); err != nil {
		m.logger.Warn("close pty slave", zap.Error(err))
	}

	if _, err := m.registry.Admit(input.Stdin(stdinFD)); err != nil {
		return m.fail("startup", err)
	}
	if _, err := m.registry.Admit(input.Master(p.Master)); err != nil {
		return m.fail("startup", err)
	}
	for len(m.pending) > 0 {
		if _, err := m.registry.Admit(m.pending[0]); err != nil {
			return m.fail("startup", err)
		}
		m.pending = m.pending[1:]
	}

	service := relay.NewService(
		m.registry,
		relay.FDWriter(int(p.Master.Fd())),
		relay.FDWriter(int(m.stdout.Fd())),
		m.config.ChunkSize,
		m.logger,
	)
	m.loop = relay.NewLoop(m.registry, service, m.poller, m.config.PollInterval, m.flag, m.logger)

	return nil
}

// Run relays until the session ends. The returned error is the reason the
// loop stopped; ExitCode tells whether it counts as a failure.
func (m *Manager) Run() error {
	m.mu.Lock()
	loop := m.loop
	m.mu.Unlock()

	if loop == nil {
		return fmt.Errorf("session not started")
	}

	err := loop.Run()

	m.mu.Lock()
	m.exitCode = exitCodeFor(err)
	m.mu.Unlock()

	switch {
	case err == nil:
		m.logger.Debug("session stopped on request")
	case m.ExitCode() == ExitSuccess:
		m.logger.Debug("session ended", zap.Error(err))
	default:
		m.sink.Report(diag.New("relay", err))
	}
	return err
}

// State returns the relay loop state
func (m *Manager) State() relay.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loop == nil {
		return relay.StateIdle
	}
	return m.loop.State()
}

// exitCodeFor maps the loop result to the process exit status. Standard
// input running out and the child hanging up are the normal ways a session
// ends.
func exitCodeFor(err error) int {
	if err == nil || errors.Is(err, relay.ErrEndOfInput) || errors.Is(err, relay.ErrHangup) {
		return ExitSuccess
	}
	return ExitFailure
}

// Close tears the session down: inputs are released newest first, the pty is
// closed, the terminal restored and the child reaped. Safe to call at any
// point and more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs error
	errs = multierr.Append(errs, m.registry.RemoveAll())

	for _, src := range m.pending {
		errs = multierr.Append(errs, src.Close())
	}
	m.pending = nil

	if m.pty != nil {
		errs = multierr.Append(errs, m.pty.Close())
	}

	if m.terminal != nil {
		errs = multierr.Append(errs, m.terminal.Restore())
	}

	if m.cmd != nil {
		m.reap()
	}

	for _, err := range multierr.Errors(errs) {
		m.sink.Report(diag.New("cleanup", err))
	}
	return errs
}

// reap waits for the child, which gets SIGHUP once the master is closed, and
// kills it when it outlives the reap timeout
func (m *Manager) reap() {
	done := make(chan error, 1)
	go func() { done <- m.cmd.Wait() }()

	timer := time.NewTimer(m.config.ReapTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		m.logger.Debug("child outlived reap timeout, killing", zap.Int("pid", m.cmd.Process.Pid))
		if kerr := m.cmd.Process.Signal(unix.SIGKILL); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			m.logger.Warn("kill child", zap.Error(kerr))
		}
		err = <-done
	}

	if m.cmd.ProcessState != nil {
		m.childExit = m.cmd.ProcessState.ExitCode()
	}
	m.logger.Debug("child reaped", zap.Int("exit_code", m.childExit), zap.Error(err))
}

// ExitCode returns the process exit status for the session
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// ChildExitCode returns the child's exit code once reaped, -1 before that or
// when it was killed by a signal
func (m *Manager) ChildExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.childExit
}

// fail reports err on the sink and marks the session as failed. Callers hold mu.
func (m *Manager) fail(stage string, err error) error {
	m.exitCode = ExitFailure
	m.sink.Report(diag.New(stage, err))
	return err
}
