package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Multiplexer names accepted by the multiplexer setting
const (
	MultiplexerPoll   = "poll"
	MultiplexerSelect = "select"
)

// MaxChunkSize bounds the relay read buffer
const MaxChunkSize = 1 << 20

// envPrefix is prepended to every environment variable name
const envPrefix = "IIX"

// Config holds all configuration for iix
type Config struct {
	// Relay settings
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
	ChunkSize    int           `yaml:"chunk_size" split_words:"true"`
	Multiplexer  string        `yaml:"multiplexer"`

	// Session settings
	InheritSize bool          `yaml:"inherit_size" split_words:"true"`
	ReapTimeout time.Duration `yaml:"reap_timeout" split_words:"true"`

	// Sources admitted before the ones named on the command line
	Files []string `yaml:"files"`
	Pipes []string `yaml:"pipes"`

	// Debug logging
	LogLevel string `yaml:"log_level" split_words:"true"`
	LogFile  string `yaml:"log_file" split_words:"true"`
	Debug    bool   `yaml:"debug"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval: time.Second,
		ChunkSize:    8192,
		Multiplexer:  MultiplexerPoll,
		InheritSize:  true,
		ReapTimeout:  2 * time.Second,
		LogLevel:     "info",
	}
}

// Load loads configuration from file and environment. An empty path selects
// the default location; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = getConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if path := os.Getenv("IIX_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "iix", "config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "iix", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML or TOML file, chosen by extension
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadTOML(cfg, data)
	}
	return yaml.Unmarshal(data, cfg)
}

// tomlFile mirrors Config for TOML documents, where durations are written as
// strings ("500ms") rather than integer nanoseconds.
type tomlFile struct {
	PollInterval *string  `toml:"poll_interval"`
	ChunkSize    *int     `toml:"chunk_size"`
	Multiplexer  *string  `toml:"multiplexer"`
	InheritSize  *bool    `toml:"inherit_size"`
	ReapTimeout  *string  `toml:"reap_timeout"`
	Files        []string `toml:"files"`
	Pipes        []string `toml:"pipes"`
	LogLevel     *string  `toml:"log_level"`
	LogFile      *string  `toml:"log_file"`
	Debug        *bool    `toml:"debug"`
}

// loadTOML applies the keys present in a TOML document
func loadTOML(cfg *Config, data []byte) error {
	var file tomlFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return err
	}

	if file.PollInterval != nil {
		d, err := time.ParseDuration(*file.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if file.ReapTimeout != nil {
		d, err := time.ParseDuration(*file.ReapTimeout)
		if err != nil {
			return fmt.Errorf("invalid reap_timeout: %w", err)
		}
		cfg.ReapTimeout = d
	}
	if file.ChunkSize != nil {
		cfg.ChunkSize = *file.ChunkSize
	}
	if file.Multiplexer != nil {
		cfg.Multiplexer = *file.Multiplexer
	}
	if file.InheritSize != nil {
		cfg.InheritSize = *file.InheritSize
	}
	if file.Files != nil {
		cfg.Files = file.Files
	}
	if file.Pipes != nil {
		cfg.Pipes = file.Pipes
	}
	if file.LogLevel != nil {
		cfg.LogLevel = *file.LogLevel
	}
	if file.LogFile != nil {
		cfg.LogFile = *file.LogFile
	}
	if file.Debug != nil {
		cfg.Debug = *file.Debug
	}

	return nil
}

// loadFromEnv overlays IIX_* environment variables (IIX_POLL_INTERVAL,
// IIX_FILES=a,b, ...). Only variables that are set replace a field.
func loadFromEnv(cfg *Config) error {
	return envconfig.Process(envPrefix, cfg)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if cfg.ChunkSize <= 0 || cfg.ChunkSize > MaxChunkSize {
		return fmt.Errorf("chunk_size must be between 1 and %d", MaxChunkSize)
	}

	switch cfg.Multiplexer {
	case MultiplexerPoll, MultiplexerSelect:
	default:
		return fmt.Errorf("invalid multiplexer %q (use %s or %s)", cfg.Multiplexer, MultiplexerPoll, MultiplexerSelect)
	}

	if cfg.ReapTimeout < 0 {
		return fmt.Errorf("reap_timeout must be non-negative")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}

	return nil
}
