package diag

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockSink struct {
	reported []Diagnostic
}

func (m *mockSink) Report(d Diagnostic) {
	m.reported = append(m.reported, d)
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{"stage and error", New("startup", errors.New("open pty: posix_openpt: no space")), "startup: open pty: posix_openpt: no space"},
		{"error only", New("", errors.New("boom")), "boom"},
		{"stage only", New("cleanup", nil), "cleanup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}

	if New("x", nil).Time.IsZero() {
		t.Error("New should stamp the time")
	}
}

func TestStderrSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink("iix", &buf)

	sink.Report(New("relay", errors.New("poll: bad file descriptor")))
	sink.Report(New("cleanup", errors.New("first\nsecond")))

	want := "iix: relay: poll: bad file descriptor\niix: cleanup: first second\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestStderrSinkNoPrefix(t *testing.T) {
	var buf bytes.Buffer
	NewWriterSink("", &buf).Report(New("startup", errors.New("x")))
	if buf.String() != "startup: x\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	underlying := &mockSink{}
	sink := NewLogSink(underlying, zap.New(core))

	d := New("startup", errors.New("not a terminal"))
	sink.Report(d)

	if len(underlying.reported) != 1 || underlying.reported[0].Stage != "startup" {
		t.Errorf("underlying sink got %+v", underlying.reported)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["stage"] != "startup" {
		t.Errorf("stage field = %v", fields["stage"])
	}
	if fields["error"] != "not a terminal" {
		t.Errorf("error field = %v", fields["error"])
	}
}

func TestLogSinkNilLogger(t *testing.T) {
	underlying := &mockSink{}
	NewLogSink(underlying, nil).Report(New("relay", errors.New("x")))
	if len(underlying.reported) != 1 {
		t.Errorf("expected diagnostic to be forwarded")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("no path is a no-op logger", func(t *testing.T) {
		logger, err := NewLogger("debug", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if logger.Core().Enabled(zap.ErrorLevel) {
			t.Error("expected a no-op logger")
		}
	})

	t.Run("writes to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "iix.log")
		logger, err := NewLogger("debug", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Debug("input admitted", zap.String("name", "stdin"))
		_ = logger.Sync()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		if !strings.Contains(string(data), "input admitted") || !strings.Contains(string(data), "stdin") {
			t.Errorf("log = %q", data)
		}
	})

	t.Run("level filters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "iix.log")
		logger, err := NewLogger("warn", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if logger.Core().Enabled(zap.InfoLevel) {
			t.Error("info should be filtered at warn level")
		}
	})

	t.Run("bad level", func(t *testing.T) {
		if _, err := NewLogger("loud", filepath.Join(t.TempDir(), "iix.log")); err == nil {
			t.Error("expected error for bad level")
		}
	})
}
