package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Capture.MaxDuration != time.Hour {
		t.Errorf("Capture.MaxDuration = %v, want 1h", cfg.Capture.MaxDuration)
	}
	if cfg.Capture.MinDuration != time.Second {
		t.Errorf("Capture.MinDuration = %v, want 1s", cfg.Capture.MinDuration)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Store.RetentionDays != 30 {
		t.Errorf("Store.RetentionDays = %d, want 30", cfg.Store.RetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
log_level: debug
speech:
  model_path: /tmp/ggml-base.bin
  language: uk
language_model:
  model_path: /tmp/model.gguf
  context_size: 4096
capture:
  max_duration: 30m
  min_duration: 2s
store:
  backend: sqlite
  retention_days: 7
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Speech.Language != "uk" {
		t.Errorf("Speech.Language = %q, want uk", cfg.Speech.Language)
	}
	if cfg.LanguageModel.ContextSize != 4096 {
		t.Errorf("LanguageModel.ContextSize = %d, want 4096", cfg.LanguageModel.ContextSize)
	}
	if cfg.Capture.MaxDuration != 30*time.Minute {
		t.Errorf("Capture.MaxDuration = %v, want 30m", cfg.Capture.MaxDuration)
	}
	// Fields absent from the file keep defaults.
	if cfg.Pipeline.InferenceTimeout != 10*time.Minute {
		t.Errorf("Pipeline.InferenceTimeout = %v, want 10m default", cfg.Pipeline.InferenceTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok-123")
	t.Setenv("VOXNOTE_DB_DSN", "postgres://h/db")

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Discord.Token != "tok-123" {
		t.Errorf("Discord.Token = %q, want tok-123", cfg.Discord.Token)
	}
	if cfg.Store.DSN != "postgres://h/db" {
		t.Errorf("Store.DSN = %q, want env override", cfg.Store.DSN)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"empty speech model", func(c *Config) { c.Speech.ModelPath = "" }, "speech.model_path"},
		{"zero max duration", func(c *Config) { c.Capture.MaxDuration = 0 }, "max_duration"},
		{"min >= max", func(c *Config) { c.Capture.MinDuration = 2 * time.Hour }, "min_duration"},
		{"bad backend", func(c *Config) { c.Store.Backend = "mysql" }, "store.backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "store.dsn"},
		{"zero retention", func(c *Config) { c.Store.RetentionDays = 0 }, "retention_days"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestStoreDSNDefaultsForSQLite(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/voxnote"
	if got := cfg.StoreDSN(); got != filepath.Join("/var/lib/voxnote", "meetings.db") {
		t.Errorf("StoreDSN() = %q", got)
	}

	cfg.Store.DSN = "file:custom.db"
	if got := cfg.StoreDSN(); got != "file:custom.db" {
		t.Errorf("StoreDSN() = %q, want explicit DSN", got)
	}
}
