package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Workers != 8 {
		t.Errorf("expected default workers 8, got %d", cfg.Workers)
	}
	if cfg.PartSize != 8*1024*1024 {
		t.Errorf("expected default part size 8MiB, got %d", cfg.PartSize)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected default retry attempts 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != time.Second {
		t.Errorf("expected default retry backoff 1s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 30*time.Second {
		t.Errorf("expected default retry max backoff 30s, got %v", cfg.Retry.MaxBackoff)
	}
	if cfg.AllowGaps {
		t.Error("expected strict gap handling by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
source: s3://bucket?region=us-east-1
key: data/large.bin
workers: 32
part_size: 16MiB
progress: true
allow_gaps: true
log_level: debug
retry:
  attempts: 10
  backoff: 2s
  max_backoff: 60s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Source != "s3://bucket?region=us-east-1" || cfg.Key != "data/large.bin" {
		t.Errorf("unexpected source %q key %q", cfg.Source, cfg.Key)
	}
	if cfg.Workers != 32 {
		t.Errorf("expected workers 32, got %d", cfg.Workers)
	}
	if cfg.PartSize != 16*1024*1024 {
		t.Errorf("expected part size 16MiB, got %d", cfg.PartSize)
	}
	if !cfg.Progress || !cfg.AllowGaps {
		t.Error("expected progress and allow_gaps true")
	}
	if cfg.Retry.Attempts != 10 {
		t.Errorf("expected retry attempts 10, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("expected retry max backoff 60s, got %v", cfg.Retry.MaxBackoff)
	}
	if level, err := cfg.Level(); err != nil || level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (err=%v)", level, err)
	}
}

func TestLoadFromYAMLKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("source: https://example.com/a.bin\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	def := Default()
	if cfg.Workers != def.Workers || cfg.PartSize != def.PartSize || cfg.Retry != def.Retry {
		t.Errorf("expected defaults to survive, got %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SEQDL_SOURCE", "file:///tmp/objects")
	t.Setenv("SEQDL_KEY", "a.bin")
	t.Setenv("SEQDL_WORKERS", "64")
	t.Setenv("SEQDL_PART_SIZE", "1GiB")
	t.Setenv("SEQDL_PROGRESS", "true")
	t.Setenv("SEQDL_UNORDERED", "1")
	t.Setenv("SEQDL_RETRY_ATTEMPTS", "7")
	t.Setenv("SEQDL_RETRY_BACKOFF", "500ms")
	t.Setenv("SEQDL_RETRY_MAX_BACKOFF", "10s")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Source != "file:///tmp/objects" || cfg.Key != "a.bin" {
		t.Errorf("unexpected source %q key %q", cfg.Source, cfg.Key)
	}
	if cfg.Workers != 64 {
		t.Errorf("expected workers 64, got %d", cfg.Workers)
	}
	if cfg.PartSize != 1024*1024*1024 {
		t.Errorf("expected part size 1GiB, got %d", cfg.PartSize)
	}
	if !cfg.Progress || !cfg.Unordered {
		t.Error("expected progress and unordered true")
	}
	if cfg.Retry.Attempts != 7 {
		t.Errorf("expected retry attempts 7, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 10*time.Second {
		t.Errorf("expected retry max backoff 10s, got %v", cfg.Retry.MaxBackoff)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("SEQDL_WORKERS", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for non-numeric SEQDL_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Source = "https://example.com/file.tar.gz"

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing source", func(c *Config) { c.Source = "" }, true},
		{"invalid workers", func(c *Config) { c.Workers = 0 }, true},
		{"invalid part size", func(c *Config) { c.PartSize = 0 }, true},
		{"negative window", func(c *Config) { c.Window = -1 }, true},
		{"negative retries", func(c *Config) { c.Retry.Attempts = -1 }, true},
		{"unordered to stdout", func(c *Config) { c.Unordered = true }, true},
		{"unordered to file", func(c *Config) { c.Unordered = true; c.Output = "out.bin" }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Source = "https://example.com/file.tar.gz"
	base.Output = "file.tar.gz"
	base.Workers = 16

	override := Config{
		Workers:   32,
		AllowGaps: true,
	}

	merged := base.Merge(override)

	if merged.Source != "https://example.com/file.tar.gz" {
		t.Errorf("expected Source preserved, got %s", merged.Source)
	}
	if merged.Output != "file.tar.gz" {
		t.Errorf("expected Output preserved, got %s", merged.Output)
	}
	if merged.PartSize != 8*1024*1024 {
		t.Errorf("expected PartSize preserved, got %d", merged.PartSize)
	}

	if merged.Workers != 32 {
		t.Errorf("expected Workers overridden to 32, got %d", merged.Workers)
	}
	if !merged.AllowGaps {
		t.Error("expected AllowGaps overridden")
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadYAMLBadPartSize(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("part_size: lots\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid part_size")
	}
}
