package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// GenerationConfig selects and configures the text-generation backend
type GenerationConfig struct {
	// Backend is "claude" (Claude CLI) or "ollama" (Ollama HTTP API)
	Backend string

	// ClaudePath is the path to the claude CLI binary
	ClaudePath string

	// Model is passed to the backend (empty uses the backend default)
	Model string

	// BaseURL is the Ollama API base URL
	BaseURL string

	// Timeout bounds a single generation call (0 = no timeout)
	Timeout time.Duration

	// SystemPrompt overrides the default system prompt
	SystemPrompt string
}

// RetryConfig configures the retry-with-repair loop
type RetryConfig struct {
	// MaxAttempts is the number of generation attempts per planning call
	MaxAttempts int

	// BaseTemperature is the sampling temperature of the first attempt
	BaseTemperature float64

	// TemperatureStep is added per attempt index
	TemperatureStep float64
}

// MemoryConfig configures the local memory store
type MemoryConfig struct {
	// Backend is "file" or "sqlite"
	Backend string

	// Dir is the root directory of the file backend
	Dir string

	// DBPath is the SQLite database path
	DBPath string
}

// TemplatesConfig configures prompt template lookup
type TemplatesConfig struct {
	// Dir holds canonical templates; empty uses the embedded defaults
	Dir string

	// CacheDir shadows Dir when a template exists in both
	CacheDir string
}

// RemoteConfig configures the remote planning server
type RemoteConfig struct {
	// Enabled routes planning and intent detection to the remote server
	// (subscription execution mode)
	Enabled bool

	// BaseURL of the planning server
	BaseURL string

	// Timeout for remote calls
	Timeout time.Duration
}

// Config represents taskpilot configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where per-conversation logs are written
	LogDir string

	Generation GenerationConfig
	Retry      RetryConfig
	Memory     MemoryConfig
	Templates  TemplatesConfig
	Remote     RemoteConfig
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   filepath.Join(DirName, "logs"),
		Generation: GenerationConfig{
			Backend:    BackendClaude,
			ClaudePath: "claude",
			BaseURL:    "http://127.0.0.1:11434",
			Timeout:    5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			BaseTemperature: 0.5,
			TemperatureStep: 0.1,
		},
		Memory: MemoryConfig{
			Backend: MemoryBackendFile,
			Dir:     filepath.Join(DirName, "memory"),
			DBPath:  filepath.Join(DirName, "memory.db"),
		},
		Remote: RemoteConfig{
			Timeout: 2 * time.Minute,
		},
	}
}

// Backend names
const (
	BackendClaude = "claude"
	BackendOllama = "ollama"

	MemoryBackendFile   = "file"
	MemoryBackendSQLite = "sqlite"
)

// fileConfig mirrors Config as it appears on disk. Durations are strings and
// every field is a pointer so an explicit zero can be told apart from absence.
type fileConfig struct {
	LogLevel   *string `yaml:"log_level" toml:"log_level"`
	LogDir     *string `yaml:"log_dir" toml:"log_dir"`
	Generation struct {
		Backend      *string `yaml:"backend" toml:"backend"`
		ClaudePath   *string `yaml:"claude_path" toml:"claude_path"`
		Model        *string `yaml:"model" toml:"model"`
		BaseURL      *string `yaml:"base_url" toml:"base_url"`
		Timeout      *string `yaml:"timeout" toml:"timeout"`
		SystemPrompt *string `yaml:"system_prompt" toml:"system_prompt"`
	} `yaml:"generation" toml:"generation"`
	Retry struct {
		MaxAttempts     *int     `yaml:"max_attempts" toml:"max_attempts"`
		BaseTemperature *float64 `yaml:"base_temperature" toml:"base_temperature"`
		TemperatureStep *float64 `yaml:"temperature_step" toml:"temperature_step"`
	} `yaml:"retry" toml:"retry"`
	Memory struct {
		Backend *string `yaml:"backend" toml:"backend"`
		Dir     *string `yaml:"dir" toml:"dir"`
		DBPath  *string `yaml:"db_path" toml:"db_path"`
	} `yaml:"memory" toml:"memory"`
	Templates struct {
		Dir      *string `yaml:"dir" toml:"dir"`
		CacheDir *string `yaml:"cache_dir" toml:"cache_dir"`
	} `yaml:"templates" toml:"templates"`
	Remote struct {
		Enabled *bool   `yaml:"enabled" toml:"enabled"`
		BaseURL *string `yaml:"base_url" toml:"base_url"`
		Timeout *string `yaml:"timeout" toml:"timeout"`
	} `yaml:"remote" toml:"remote"`
}

// LoadConfig loads configuration from the specified file path.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.apply(&fc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromDir loads configuration from .taskpilot/config.yaml (or
// config.toml) in the specified directory. Missing files yield defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	yamlPath := filepath.Join(dir, DirName, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return LoadConfig(yamlPath)
	}
	return LoadConfig(filepath.Join(dir, DirName, "config.toml"))
}

// apply merges values present in the file onto c
func (c *Config) apply(fc *fileConfig) error {
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogDir, fc.LogDir)

	g := fc.Generation
	setString(&c.Generation.Backend, g.Backend)
	setString(&c.Generation.ClaudePath, g.ClaudePath)
	setString(&c.Generation.Model, g.Model)
	setString(&c.Generation.BaseURL, g.BaseURL)
	setString(&c.Generation.SystemPrompt, g.SystemPrompt)
	if err := setDuration(&c.Generation.Timeout, g.Timeout, "generation.timeout"); err != nil {
		return err
	}

	if fc.Retry.MaxAttempts != nil {
		c.Retry.MaxAttempts = *fc.Retry.MaxAttempts
	}
	if fc.Retry.BaseTemperature != nil {
		c.Retry.BaseTemperature = *fc.Retry.BaseTemperature
	}
	if fc.Retry.TemperatureStep != nil {
		c.Retry.TemperatureStep = *fc.Retry.TemperatureStep
	}

	setString(&c.Memory.Backend, fc.Memory.Backend)
	setString(&c.Memory.Dir, fc.Memory.Dir)
	setString(&c.Memory.DBPath, fc.Memory.DBPath)

	setString(&c.Templates.Dir, fc.Templates.Dir)
	setString(&c.Templates.CacheDir, fc.Templates.CacheDir)

	if fc.Remote.Enabled != nil {
		c.Remote.Enabled = *fc.Remote.Enabled
	}
	setString(&c.Remote.BaseURL, fc.Remote.BaseURL)
	return setDuration(&c.Remote.Timeout, fc.Remote.Timeout, "remote.timeout")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, field string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s format %q: %w", field, *v, err)
	}
	*dst = d
	return nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(logLevel *string, backend *string, model *string, maxAttempts *int, remote *bool) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if backend != nil {
		c.Generation.Backend = *backend
	}
	if model != nil {
		c.Generation.Model = *model
	}
	if maxAttempts != nil {
		c.Retry.MaxAttempts = *maxAttempts
	}
	if remote != nil {
		c.Remote.Enabled = *remote
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	switch c.Generation.Backend {
	case BackendClaude:
		if c.Generation.ClaudePath == "" {
			return fmt.Errorf("generation.claude_path cannot be empty for the claude backend")
		}
	case BackendOllama:
		if c.Generation.BaseURL == "" {
			return fmt.Errorf("generation.base_url cannot be empty for the ollama backend")
		}
	default:
		return fmt.Errorf("invalid generation.backend %q, must be one of: claude, ollama", c.Generation.Backend)
	}
	if c.Generation.Timeout < 0 {
		return fmt.Errorf("generation.timeout must be >= 0, got %v", c.Generation.Timeout)
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseTemperature < 0 || c.Retry.TemperatureStep < 0 {
		return fmt.Errorf("retry temperatures must be >= 0")
	}

	switch c.Memory.Backend {
	case MemoryBackendFile:
		if c.Memory.Dir == "" {
			return fmt.Errorf("memory.dir cannot be empty for the file backend")
		}
	case MemoryBackendSQLite:
		if c.Memory.DBPath == "" {
			return fmt.Errorf("memory.db_path cannot be empty for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid memory.backend %q, must be one of: file, sqlite", c.Memory.Backend)
	}

	if c.Remote.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url cannot be empty when remote is enabled")
	}

	return nil
}
