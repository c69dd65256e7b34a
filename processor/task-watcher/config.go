// Package taskwatcher rescans the specs tree when checklists change. File
// events are debounced into a single trigger and at most one scan runs at a
// time; triggers arriving while a scan is in flight are dropped.
package taskwatcher

import (
	"time"

	"github.com/c360studio/spectasks/workflow"
)

// DefaultDebounce is the quiet period after the last qualifying event.
const DefaultDebounce = time.Second

// Config configures the scheduler.
type Config struct {
	// Debounce is how long to wait for more changes before scanning.
	Debounce time.Duration

	// TasksFile is the checklist file name that qualifies an event.
	TasksFile string

	// ExcludeDirs lists directory names that are never watched.
	ExcludeDirs []string
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:    DefaultDebounce,
		TasksFile:   workflow.TasksFile,
		ExcludeDirs: []string{".git", "node_modules"},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.TasksFile == "" {
		c.TasksFile = d.TasksFile
	}
	if c.ExcludeDirs == nil {
		c.ExcludeDirs = d.ExcludeDirs
	}
	return c
}
