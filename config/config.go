// Package config provides configuration loading and management for spectasks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/spectasks/workflow"
)

// Config represents the complete spectasks configuration
type Config struct {
	// Root is the project root that relative paths resolve against
	// (auto-detected if empty)
	Root     string         `yaml:"root,omitempty"`
	Specs    SpecsConfig    `yaml:"specs"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Watch    WatchConfig    `yaml:"watch"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
}

// SpecsConfig locates the feature checklists
type SpecsConfig struct {
	// Dir is the specs directory holding one subdirectory per feature
	Dir string `yaml:"dir"`
	// TasksFile is the checklist file name inside each feature
	TasksFile string `yaml:"tasks_file"`
	// Exclude lists doublestar patterns of feature names to skip
	Exclude []string `yaml:"exclude,omitempty"`
}

// SnapshotConfig configures the status snapshot file
type SnapshotConfig struct {
	// Path is the snapshot JSON file
	Path string `yaml:"path"`
	// Validate enables schema validation on load (default: true)
	Validate *bool `yaml:"validate,omitempty"`
}

// WatchConfig configures the watch loop
type WatchConfig struct {
	// Debounce is the quiet period after the last checklist change
	Debounce time.Duration `yaml:"debounce"`
	// ExcludeDirs lists directory names that are never watched
	ExcludeDirs []string `yaml:"exclude_dirs,omitempty"`
	// MetricsAddr serves prometheus metrics when set (e.g. ":9090")
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// NATSConfig configures optional event publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url,omitempty"`
	// SubjectPrefix is prepended to event subjects
	SubjectPrefix string `yaml:"subject_prefix"`
	// JetStream publishes with acknowledgements
	JetStream bool `yaml:"jetstream,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Specs: SpecsConfig{
			Dir:       filepath.Join(workflow.RootDir, workflow.SpecsDir),
			TasksFile: workflow.TasksFile,
		},
		Snapshot: SnapshotConfig{
			Path: filepath.Join(workflow.RootDir, workflow.StatusFileDir, workflow.StatusFile),
		},
		Watch: WatchConfig{
			Debounce:    time.Second,
			ExcludeDirs: []string{".git", "node_modules"},
		},
		NATS: NATSConfig{
			SubjectPrefix: "spectasks",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Specs.Dir == "" {
		return fmt.Errorf("specs.dir is required")
	}
	if c.Specs.TasksFile == "" {
		return fmt.Errorf("specs.tasks_file is required")
	}
	if c.Specs.TasksFile != filepath.Base(c.Specs.TasksFile) {
		return fmt.Errorf("specs.tasks_file must be a file name, got %q", c.Specs.TasksFile)
	}
	for _, pattern := range c.Specs.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("specs.exclude: invalid pattern %q", pattern)
		}
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("log.format must be text or json")
	}
	if strings.ContainsAny(c.NATS.SubjectPrefix, "*> \t") {
		return fmt.Errorf("nats.subject_prefix must not contain wildcards or spaces")
	}
	return nil
}

// SchemaValidation reports whether the snapshot is validated on load.
func (c *Config) SchemaValidation() bool {
	return c.Snapshot.Validate == nil || *c.Snapshot.Validate
}

// SpecsPath returns the specs directory resolved against Root.
func (c *Config) SpecsPath() string {
	return c.resolve(c.Specs.Dir)
}

// SnapshotPath returns the snapshot file resolved against Root.
func (c *Config) SnapshotPath() string {
	return c.resolve(c.Snapshot.Path)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.Root == "" {
		return path
	}
	return filepath.Join(c.Root, path)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file. It refuses to overwrite an
// existing file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Root != "" {
		c.Root = other.Root
	}

	// Specs
	if other.Specs.Dir != "" {
		c.Specs.Dir = other.Specs.Dir
	}
	if other.Specs.TasksFile != "" {
		c.Specs.TasksFile = other.Specs.TasksFile
	}
	if len(other.Specs.Exclude) > 0 {
		c.Specs.Exclude = other.Specs.Exclude
	}

	// Snapshot
	if other.Snapshot.Path != "" {
		c.Snapshot.Path = other.Snapshot.Path
	}
	if other.Snapshot.Validate != nil {
		v := *other.Snapshot.Validate
		c.Snapshot.Validate = &v
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.NATS.JetStream {
		c.NATS.JetStream = true
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
