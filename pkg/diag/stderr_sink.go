package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// StderrSink prints each diagnostic as a single line on standard error
type StderrSink struct {
	prefix string

	mu  sync.Mutex
	out io.Writer
}

// NewStderrSink creates a sink writing "<prefix>: stage: reason" lines to stderr
func NewStderrSink(prefix string) *StderrSink {
	return NewWriterSink(prefix, os.Stderr)
}

// NewWriterSink is NewStderrSink with an explicit destination
func NewWriterSink(prefix string, out io.Writer) *StderrSink {
	return &StderrSink{prefix: prefix, out: out}
}

// Report implements the Sink interface
func (s *StderrSink) Report(d Diagnostic) {
	line := strings.ReplaceAll(d.String(), "\n", " ")
	if s.prefix != "" {
		line = s.prefix + ": " + line
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.out, line)
}
