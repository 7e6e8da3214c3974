package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.ChunkSize != 8192 {
		t.Errorf("ChunkSize = %d, want 8192", cfg.ChunkSize)
	}
	if cfg.Multiplexer != MultiplexerPoll {
		t.Errorf("Multiplexer = %q, want poll", cfg.Multiplexer)
	}
	if !cfg.InheritSize {
		t.Error("InheritSize should default to true")
	}
	if err := validate(cfg); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(cfg, DefaultConfig()) {
			t.Errorf("got %+v, want defaults", cfg)
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", `
poll_interval: 250ms
chunk_size: 512
multiplexer: select
inherit_size: false
reap_timeout: 5s
files: [a.txt, b.txt]
pipes: [ctl]
log_file: /tmp/iix.log
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := DefaultConfig()
		want.PollInterval = 250 * time.Millisecond
		want.ChunkSize = 512
		want.Multiplexer = MultiplexerSelect
		want.InheritSize = false
		want.ReapTimeout = 5 * time.Second
		want.Files = []string{"a.txt", "b.txt"}
		want.Pipes = []string{"ctl"}
		want.LogFile = "/tmp/iix.log"
		if !reflect.DeepEqual(cfg, want) {
			t.Errorf("got %+v, want %+v", cfg, want)
		}
	})

	t.Run("toml file", func(t *testing.T) {
		path := writeConfig(t, "config.toml", `
poll_interval = "100ms"
chunk_size = 1024
reap_timeout = "0s"
files = ["script.txt"]
debug = true
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.PollInterval != 100*time.Millisecond {
			t.Errorf("PollInterval = %v, want 100ms", cfg.PollInterval)
		}
		if cfg.ChunkSize != 1024 {
			t.Errorf("ChunkSize = %d, want 1024", cfg.ChunkSize)
		}
		if cfg.ReapTimeout != 0 {
			t.Errorf("ReapTimeout = %v, want 0", cfg.ReapTimeout)
		}
		if !reflect.DeepEqual(cfg.Files, []string{"script.txt"}) {
			t.Errorf("Files = %v", cfg.Files)
		}
		if cfg.Multiplexer != MultiplexerPoll {
			t.Errorf("Multiplexer = %q, unset keys keep defaults", cfg.Multiplexer)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, debug should force debug level", cfg.LogLevel)
		}
	})

	t.Run("toml bad duration", func(t *testing.T) {
		path := writeConfig(t, "config.toml", `poll_interval = "soon"`)
		if _, err := Load(path); err == nil {
			t.Error("expected error for bad duration")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "chunk_size: [")
		if _, err := Load(path); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "config.yaml", "chunk_size: 512\nmultiplexer: select\n")
		t.Setenv("IIX_CHUNK_SIZE", "2048")
		t.Setenv("IIX_POLL_INTERVAL", "20ms")
		t.Setenv("IIX_FILES", "x,y")
		t.Setenv("IIX_INHERIT_SIZE", "false")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ChunkSize != 2048 {
			t.Errorf("ChunkSize = %d, want 2048", cfg.ChunkSize)
		}
		if cfg.PollInterval != 20*time.Millisecond {
			t.Errorf("PollInterval = %v, want 20ms", cfg.PollInterval)
		}
		if !reflect.DeepEqual(cfg.Files, []string{"x", "y"}) {
			t.Errorf("Files = %v, want [x y]", cfg.Files)
		}
		if cfg.InheritSize {
			t.Error("InheritSize should be false")
		}
		if cfg.Multiplexer != MultiplexerSelect {
			t.Errorf("Multiplexer = %q, file value should survive", cfg.Multiplexer)
		}
	})

	t.Run("config path from environment", func(t *testing.T) {
		path := writeConfig(t, "custom.yaml", "chunk_size: 4096\n")
		t.Setenv("IIX_CONFIG", path)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ChunkSize != 4096 {
			t.Errorf("ChunkSize = %d, want 4096", cfg.ChunkSize)
		}
	})
}

func TestGetConfigPath(t *testing.T) {
	t.Run("xdg", func(t *testing.T) {
		t.Setenv("IIX_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		if got := getConfigPath(); got != filepath.Join("/xdg", "iix", "config.yaml") {
			t.Errorf("getConfigPath() = %q", got)
		}
	})

	t.Run("home", func(t *testing.T) {
		t.Setenv("IIX_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/someone")
		if got := getConfigPath(); got != filepath.Join("/home/someone", ".config", "iix", "config.yaml") {
			t.Errorf("getConfigPath() = %q", got)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"oversized chunk", func(c *Config) { c.ChunkSize = MaxChunkSize + 1 }, "chunk_size"},
		{"unknown multiplexer", func(c *Config) { c.Multiplexer = "epoll" }, "multiplexer"},
		{"negative reap timeout", func(c *Config) { c.ReapTimeout = -time.Second }, "reap_timeout"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"select is accepted", func(c *Config) { c.Multiplexer = MultiplexerSelect }, ""},
		{"largest chunk is accepted", func(c *Config) { c.ChunkSize = MaxChunkSize }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
