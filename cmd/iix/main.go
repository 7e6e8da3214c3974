package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/nakkulla/iix/pkg/config"
	"github.com/nakkulla/iix/pkg/process"
)

// options are the parsed command line
type options struct {
	configPath string
	files      []string
	pipes      []string
	help       bool
	target     []string
}

var errMissingTarget = errors.New("missing target program")

// parseArgs parses our options. Scanning stops at the first operand (or
// "--"), so the target's own flags are passed through untouched.
func parseArgs(args []string) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("iix", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)
	fs.StringArrayVarP(&opts.files, "file", "f", nil, "Relay the contents of a regular file into the program")
	fs.StringArrayVarP(&opts.pipes, "pipe", "p", nil, "Relay a named pipe (FIFO) into the program")
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.BoolVarP(&opts.help, "help", "h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.help {
		return opts, nil
	}

	opts.target = fs.Args()
	if len(opts.target) == 0 {
		return nil, errMissingTarget
	}
	return opts, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iix: %v\n", err)
		printUsage(os.Stderr)
		return process.ExitFailure
	}
	if opts.help {
		printUsage(os.Stdout)
		return process.ExitSuccess
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iix: %v\n", err)
		return process.ExitFailure
	}

	deps, err := NewDependencies(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iix: %v\n", err)
		return process.ExitFailure
	}
	defer deps.Close()

	app := NewApplication(deps)

	// Ensure terminal restoration on panic
	defer func() {
		if r := recover(); r != nil {
			_ = app.Stop() // Best effort terminal restoration
			panic(r)
		}
	}()

	program := process.Program{Name: opts.target[0], Args: opts.target[1:]}
	deps.Logger.Debug("starting session")

	// Failures were already reported on the sink
	_ = app.Run(program, opts.files, opts.pipes)

	// Cleanup has to finish before the exit status is final
	deps.Close()
	return app.ExitCode()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "iix - relay files and named pipes into an interactive program")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: iix [OPTIONS] [--] PROGRAM [ARGS...]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Runs PROGRAM on a new pseudo-terminal. Keystrokes and the contents of every")
	fmt.Fprintln(w, "file and pipe given are written to it; its output is shown on this terminal.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -f, --file PATH       Relay a regular file (repeatable)")
	fmt.Fprintln(w, "  -p, --pipe PATH       Relay a named pipe (repeatable)")
	fmt.Fprintln(w, "      --config PATH     Path to config file")
	fmt.Fprintln(w, "  -h, --help            Show help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  IIX_CONFIG            Path to config file")
	fmt.Fprintln(w, "  IIX_POLL_INTERVAL     Wait interval between stop checks (default: 1s)")
	fmt.Fprintln(w, "  IIX_CHUNK_SIZE        Relay read size in bytes (default: 8192)")
	fmt.Fprintln(w, "  IIX_MULTIPLEXER       poll or select (default: poll)")
	fmt.Fprintln(w, "  IIX_INHERIT_SIZE      Copy the window size to the program (default: true)")
	fmt.Fprintln(w, "  IIX_REAP_TIMEOUT      Wait for the program to exit before killing it (default: 2s)")
	fmt.Fprintln(w, "  IIX_FILES, IIX_PIPES  Extra sources (comma-separated)")
	fmt.Fprintln(w, "  IIX_LOG_FILE          Write a debug log to this file")
	fmt.Fprintln(w, "  IIX_LOG_LEVEL         Debug log level (default: info)")
	fmt.Fprintln(w, "  IIX_DEBUG             Shorthand for IIX_LOG_LEVEL=debug")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration file: ~/.config/iix/config.yaml (or .toml via --config)")
	fmt.Fprintln(w, "The program sees the session id in IIX_SESSION.")
}
