// Package tasksync keeps the status snapshot in step with the feature
// checklists: it rebuilds the snapshot from markdown and applies completion
// edits back to the markdown.
package tasksync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/c360studio/spectasks/storage"
	"github.com/c360studio/spectasks/workflow"
)

// ScanResult is the outcome of one full rescan.
type ScanResult struct {
	// ID identifies the scan in logs and events.
	ID string

	Snapshot *workflow.Snapshot
	Stats    storage.Stats

	// FileErrors lists checklist files that could not be read.
	FileErrors []FileError

	// Duplicates maps a feature to task IDs that occur more than once.
	Duplicates map[string][]string

	Duration time.Duration
}

// Scanner rebuilds a snapshot from every feature checklist.
type Scanner struct {
	layout   *workflow.Layout
	excludes []string
	logger   *slog.Logger
	now      func() time.Time
}

// NewScanner creates a scanner over layout. Feature directories whose name
// matches any of the doublestar excludes are skipped.
func NewScanner(layout *workflow.Layout, excludes []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		layout:   layout,
		excludes: excludes,
		logger:   logger,
		now:      time.Now,
	}
}

// Scan parses every feature checklist in name order into a fresh snapshot.
// Files are processed one at a time. Unreadable files are collected in the
// result and do not stop the scan. A cancelled context aborts between
// features.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := s.now()
	result := &ScanResult{
		ID:         uuid.New().String(),
		Duplicates: make(map[string][]string),
	}

	features, err := s.layout.FeatureDirs()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSpecsDirMissing, s.layout.SpecsPath())
		}
		return nil, fmt.Errorf("list features: %w", err)
	}

	snap := workflow.NewSnapshot()
	for _, feature := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.excluded(feature) {
			s.logger.Debug("Skipping excluded feature", "feature", feature)
			continue
		}

		path := s.layout.TasksPath(feature)
		tasks, err := workflow.ParseTasksFile(path, feature)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			s.logger.Warn("Failed to read checklist", "feature", feature, "path", path, "error", err)
			result.FileErrors = append(result.FileErrors, FileError{Feature: feature, Path: path, Err: err})
			continue
		}

		if dups := workflow.DuplicateIDs(tasks); len(dups) > 0 {
			s.logger.Warn("Duplicate task ids in checklist", "feature", feature, "ids", dups)
			result.Duplicates[feature] = dups
		}
		if len(tasks) > 0 {
			snap.Tasks[feature] = tasks
		}
	}

	end := s.now()
	finished := end.UTC()
	snap.LastUpdated = &finished
	result.Snapshot = snap
	result.Stats = storage.ComputeStats(snap)
	result.Duration = end.Sub(start)
	return result, nil
}

// excluded reports whether a feature name matches an exclude pattern.
func (s *Scanner) excluded(feature string) bool {
	for _, pattern := range s.excludes {
		if ok, err := doublestar.Match(pattern, feature); err == nil && ok {
			return true
		}
	}
	return false
}
