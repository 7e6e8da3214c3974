package main

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nakkulla/iix/pkg/config"
	"github.com/nakkulla/iix/pkg/diag"
	"github.com/nakkulla/iix/pkg/interfaces"
	"github.com/nakkulla/iix/pkg/process"
	"github.com/nakkulla/iix/pkg/shutdown"
)

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Sink       diag.Sink
	Controller *shutdown.Controller
	Session    *process.Manager
	unwatch    func()
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	logger, err := diag.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug log: %w", err)
	}

	deps := &Dependencies{
		Config:     cfg,
		Logger:     logger,
		Controller: shutdown.NewController(),
	}

	// Every diagnostic goes to stderr and, when enabled, the debug log
	deps.Sink = diag.NewLogSink(diag.NewStderrSink("iix"), logger)

	session, err := process.NewManager(cfg, deps.Sink, logger, deps.Controller)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	deps.Session = session

	deps.unwatch = deps.Controller.Watch()

	return deps, nil
}

// Close cleans up all dependencies. Safe to call more than once.
func (d *Dependencies) Close() {
	if d.unwatch != nil {
		d.unwatch()
		d.unwatch = nil
	}

	if d.Session != nil {
		// Errors were reported on the sink
		_ = d.Session.Close()
	}

	_ = d.Logger.Sync()
}

// Application represents the main application
type Application struct {
	deps    *Dependencies
	stopper interfaces.Stopper
	session interfaces.SessionRunner
	failed  bool
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps:    deps,
		stopper: deps.Controller,
		session: deps.Session,
	}
}

// Run checks the terminal, opens the configured sources followed by files and
// pipes, starts program and relays until the session ends
func (a *Application) Run(program process.Program, files, pipes []string) error {
	cfg := a.deps.Config

	if err := process.CheckTerminal(int(os.Stdin.Fd())); err != nil {
		a.deps.Sink.Report(diag.New("startup", err))
		a.failed = true
		return err
	}

	var errs error
	for _, path := range append(append([]string{}, cfg.Files...), files...) {
		errs = multierr.Append(errs, a.deps.Session.AddFile(path))
	}
	for _, path := range append(append([]string{}, cfg.Pipes...), pipes...) {
		errs = multierr.Append(errs, a.deps.Session.AddPipe(path))
	}
	if errs != nil {
		return errs
	}

	if err := a.deps.Session.Start(program); err != nil {
		return err
	}

	return a.session.Run()
}

// Stop requests a stop and tears the session down, restoring the terminal
func (a *Application) Stop() error {
	a.stopper.Stop()
	return a.session.Close()
}

// ExitCode returns the exit status for iix
func (a *Application) ExitCode() int {
	if a.failed {
		return process.ExitFailure
	}
	return a.session.ExitCode()
}
