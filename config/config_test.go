package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Specs.Dir != filepath.Join(".kiro", "specs") {
		t.Errorf("expected default specs dir .kiro/specs, got %s", cfg.Specs.Dir)
	}
	if cfg.Specs.TasksFile != "tasks.md" {
		t.Errorf("expected default tasks file tasks.md, got %s", cfg.Specs.TasksFile)
	}
	if cfg.Snapshot.Path != filepath.Join(".kiro", "scripts", "tasks-status.json") {
		t.Errorf("unexpected default snapshot path %s", cfg.Snapshot.Path)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("expected default debounce 1s, got %v", cfg.Watch.Debounce)
	}
	if !cfg.SchemaValidation() {
		t.Error("expected schema validation by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing specs dir",
			modify:  func(c *Config) { c.Specs.Dir = "" },
			wantErr: true,
		},
		{
			name:    "tasks file with directory",
			modify:  func(c *Config) { c.Specs.TasksFile = "docs/tasks.md" },
			wantErr: true,
		},
		{
			name:    "invalid exclude pattern",
			modify:  func(c *Config) { c.Specs.Exclude = []string{"archive-[" } },
			wantErr: true,
		},
		{
			name:    "valid exclude pattern",
			modify:  func(c *Config) { c.Specs.Exclude = []string{"archive-*", "{draft,wip}-*"} },
			wantErr: false,
		},
		{
			name:    "missing snapshot path",
			modify:  func(c *Config) { c.Snapshot.Path = "" },
			wantErr: true,
		},
		{
			name:    "zero debounce",
			modify:  func(c *Config) { c.Watch.Debounce = 0 },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "upper case log level",
			modify:  func(c *Config) { c.Log.Level = "DEBUG" },
			wantErr: false,
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "wildcard subject prefix",
			modify:  func(c *Config) { c.NATS.SubjectPrefix = "spectasks.>" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	off := false
	other := &Config{
		Specs:    SpecsConfig{Dir: "specs", Exclude: []string{"old-*"}},
		Snapshot: SnapshotConfig{Validate: &off},
		Watch:    WatchConfig{Debounce: 250 * time.Millisecond, MetricsAddr: ":9090"},
		NATS:     NATSConfig{URL: "nats://localhost:4222", JetStream: true},
		Log:      LogConfig{Level: "debug"},
	}

	base.Merge(other)

	if base.Specs.Dir != "specs" {
		t.Errorf("expected specs dir specs, got %s", base.Specs.Dir)
	}
	if base.Specs.TasksFile != "tasks.md" {
		t.Errorf("expected tasks file to be preserved, got %s", base.Specs.TasksFile)
	}
	if base.SchemaValidation() {
		t.Error("expected schema validation to be disabled")
	}
	if base.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", base.Watch.Debounce)
	}
	if base.Watch.MetricsAddr != ":9090" {
		t.Errorf("expected metrics addr :9090, got %s", base.Watch.MetricsAddr)
	}
	if base.NATS.URL != "nats://localhost:4222" || !base.NATS.JetStream {
		t.Errorf("unexpected nats config %+v", base.NATS)
	}
	if base.NATS.SubjectPrefix != "spectasks" {
		t.Errorf("expected subject prefix to be preserved, got %s", base.NATS.SubjectPrefix)
	}
	if base.Log.Level != "debug" || base.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", base.Log)
	}

	// Merging nil is a no-op.
	base.Merge(nil)
}

func TestResolvedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = "/repo"

	if got := cfg.SpecsPath(); got != filepath.Join("/repo", ".kiro", "specs") {
		t.Errorf("SpecsPath() = %s", got)
	}
	if got := cfg.SnapshotPath(); got != filepath.Join("/repo", ".kiro", "scripts", "tasks-status.json") {
		t.Errorf("SnapshotPath() = %s", got)
	}

	cfg.Snapshot.Path = "/var/lib/spectasks/status.json"
	if got := cfg.SnapshotPath(); got != "/var/lib/spectasks/status.json" {
		t.Errorf("absolute SnapshotPath() = %s", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "spectasks.yaml")

	content := `specs:
  dir: docs/specs
  exclude:
    - archive-*
watch:
  debounce: 500ms
log:
  format: json
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Specs.Dir != "docs/specs" {
		t.Errorf("expected specs dir docs/specs, got %s", cfg.Specs.Dir)
	}
	if len(cfg.Specs.Exclude) != 1 || cfg.Specs.Exclude[0] != "archive-*" {
		t.Errorf("unexpected excludes %v", cfg.Specs.Exclude)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format json, got %s", cfg.Log.Format)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("specs: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spectasks.yaml")

	cfg := DefaultConfig()
	cfg.Specs.Exclude = []string{"archive-*"}
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Specs.Dir != cfg.Specs.Dir || loaded.Watch.Debounce != cfg.Watch.Debounce {
		t.Errorf("round trip mismatch: %+v", loaded)
	}

	if err := cfg.SaveToFile(path); err == nil {
		t.Error("expected error when the file already exists")
	}
}
