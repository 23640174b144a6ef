// Package config provides YAML configuration with defaults, validation, and
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	DataDir  string `yaml:"data_dir"`

	Speech        SpeechConfig        `yaml:"speech"`
	LanguageModel LanguageModelConfig `yaml:"language_model"`
	Capture       CaptureConfig       `yaml:"capture"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Store         StoreConfig         `yaml:"store"`
	Events        EventsConfig        `yaml:"events"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Discord       DiscordConfig       `yaml:"discord"`
}

// SpeechConfig configures the speech-to-text model.
type SpeechConfig struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
}

// LanguageModelConfig configures the note-synthesis model.
type LanguageModelConfig struct {
	ModelPath   string `yaml:"model_path"`
	ContextSize int    `yaml:"context_size"`
	GPULayers   int    `yaml:"gpu_layers"`
	Threads     int    `yaml:"threads"`
	MaxTokens   int    `yaml:"max_tokens"`
}

// CaptureConfig configures audio accumulation limits.
type CaptureConfig struct {
	MaxDuration time.Duration `yaml:"max_duration"`
	MinDuration time.Duration `yaml:"min_duration"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	ArchiveWAV  bool          `yaml:"archive_wav"`
}

// PipelineConfig configures pipeline stage behavior.
type PipelineConfig struct {
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
}

// StoreConfig configures meeting persistence.
type StoreConfig struct {
	Backend       string `yaml:"backend"` // "sqlite" or "postgres"
	DSN           string `yaml:"dsn"`
	RetentionDays int    `yaml:"retention_days"`
}

// EventsConfig configures the optional Redis event publisher.
type EventsConfig struct {
	RedisAddr string `yaml:"redis_addr"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DiscordConfig configures the chat adapter. The bot token is only read from
// the DISCORD_TOKEN environment variable, never from the config file.
type DiscordConfig struct {
	CommandPrefix string `yaml:"command_prefix"`
	Token         string `yaml:"-"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voxnote", "config.yaml")
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "voxnote")
}

// DefaultModelsDir returns the default directory for downloaded model weights.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	dataDir := DefaultDataDir()
	modelsDir := filepath.Join(dataDir, "models")

	return &Config{
		LogLevel: "info",
		DataDir:  dataDir,
		Speech: SpeechConfig{
			ModelPath: filepath.Join(modelsDir, "ggml-small.bin"),
			Language:  "en",
			Threads:   4,
		},
		LanguageModel: LanguageModelConfig{
			ModelPath:   filepath.Join(modelsDir, "llama-2-7b.Q4_K_M.gguf"),
			ContextSize: 2048,
			GPULayers:   1,
			Threads:     8,
			MaxTokens:   800,
		},
		Capture: CaptureConfig{
			MaxDuration: time.Hour,
			MinDuration: time.Second,
			IdleTimeout: 5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			InferenceTimeout: 10 * time.Minute,
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			RetentionDays: 30,
		},
		Discord: DiscordConfig{
			CommandPrefix: "!",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults, paths get tilde expansion, and secrets are pulled from the
// environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	cfg.expandPaths()

	return cfg, nil
}

// LoadOrDefault loads the config at path, or the default path if it exists,
// or falls back to built-in defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	defaultPath := DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		return Load(defaultPath)
	}
	cfg := Default()
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secret-bearing fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("VOXNOTE_DB_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("VOXNOTE_REDIS_ADDR"); v != "" {
		c.Events.RedisAddr = v
	}
}

func (c *Config) expandPaths() {
	c.DataDir = expandTilde(c.DataDir)
	c.Speech.ModelPath = expandTilde(c.Speech.ModelPath)
	c.LanguageModel.ModelPath = expandTilde(c.LanguageModel.ModelPath)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Speech.ModelPath == "" {
		return fmt.Errorf("speech.model_path must not be empty")
	}
	if c.LanguageModel.ModelPath == "" {
		return fmt.Errorf("language_model.model_path must not be empty")
	}
	if c.LanguageModel.ContextSize <= 0 {
		return fmt.Errorf("language_model.context_size must be > 0")
	}

	if c.Capture.MaxDuration <= 0 {
		return fmt.Errorf("capture.max_duration must be > 0")
	}
	if c.Capture.MinDuration <= 0 {
		return fmt.Errorf("capture.min_duration must be > 0")
	}
	if c.Capture.MinDuration >= c.Capture.MaxDuration {
		return fmt.Errorf("capture.min_duration must be less than capture.max_duration")
	}

	if c.Pipeline.InferenceTimeout <= 0 {
		return fmt.Errorf("pipeline.inference_timeout must be > 0")
	}

	switch c.Store.Backend {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, postgres, or memory, got %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres backend")
	}
	if c.Store.RetentionDays <= 0 {
		return fmt.Errorf("store.retention_days must be > 0")
	}

	return nil
}

// StoreDSN resolves the effective DSN, defaulting the sqlite backend to a
// database file under the data directory.
func (c *Config) StoreDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	if c.Store.Backend == "sqlite" {
		return filepath.Join(c.DataDir, "meetings.db")
	}
	return ""
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
