package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "spectasks.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/spectasks"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment overrides applied after the config files.
const (
	EnvSpecsDir = "SPECTASKS_SPECS_DIR"
	EnvSnapshot = "SPECTASKS_SNAPSHOT"
	EnvLogLevel = "SPECTASKS_LOG_LEVEL"
	EnvNATSURL  = "NATS_URL"
	EnvDebounce = "SPECTASKS_DEBOUNCE"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// Overridable for tests.
	workDir string
	homeDir string
	getenv  func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, getenv: os.Getenv}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/spectasks/config.yaml)
// 3. Project config (explicitPath, or spectasks.yaml in current or parent directories)
// 4. Environment variables
//
// Root is resolved from the project config directory, else the git root,
// else the current directory.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := explicitPath
	if projectConfigPath == "" {
		projectConfigPath = l.findProjectConfig()
	}
	if projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		if err != nil {
			// A config file named on the command line must load.
			if explicitPath != "" {
				return nil, err
			}
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		} else {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
			if config.Root == "" || !filepath.IsAbs(config.Root) {
				config.Root = filepath.Join(filepath.Dir(absPath(projectConfigPath)), config.Root)
			}
		}
	} else {
		l.logger.Debug("No project config found")
	}

	l.applyEnv(config)

	if config.Root == "" {
		if gitRoot := l.detectGitRoot(); gitRoot != "" {
			config.Root = gitRoot
			l.logger.Debug("Auto-detected git root", slog.String("path", gitRoot))
		} else {
			config.Root = l.workingDir()
			l.logger.Debug("Using current directory as project root", slog.String("path", config.Root))
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides config values from environment variables.
func (l *Loader) applyEnv(config *Config) {
	if v := l.getenv(EnvSpecsDir); v != "" {
		config.Specs.Dir = v
	}
	if v := l.getenv(EnvSnapshot); v != "" {
		config.Snapshot.Path = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	if v := l.getenv(EnvNATSURL); v != "" {
		config.NATS.URL = v
	}
	if v := l.getenv(EnvDebounce); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Watch.Debounce = d
		} else {
			l.logger.Warn("Ignoring invalid debounce override", slog.String("env", EnvDebounce), slog.String("value", v))
		}
	}
}

// ProjectConfigPath returns where a project config for the working
// directory is written.
func (l *Loader) ProjectConfigPath() string {
	return filepath.Join(l.workingDir(), ProjectConfigFile)
}

func (l *Loader) workingDir() string {
	if l.workDir != "" {
		return l.workDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for spectasks.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workingDir()
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// detectGitRoot finds the git repository root from the working directory
func (l *Loader) detectGitRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = l.workingDir()
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
