package tasksync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/spectasks/storage"
	"github.com/c360studio/spectasks/workflow"
)

// Event kinds published after snapshot changes.
const (
	EventSnapshotUpdated = "snapshot.updated"
	EventTaskCompleted   = "task.completed"
	EventTaskReopened    = "task.reopened"
)

// Event describes a persisted snapshot change.
type Event struct {
	Kind           string    `json:"kind"`
	ScanID         string    `json:"scanId,omitempty"`
	TaskID         string    `json:"taskId,omitempty"`
	Feature        string    `json:"feature,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Features       int       `json:"features"`
	TotalTasks     int       `json:"totalTasks"`
	CompletedTasks int       `json:"completedTasks"`
}

// Notifier receives events after the snapshot is saved. Notification
// failures are logged and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// CompletionResult reports a completion or reopen request.
type CompletionResult struct {
	Feature string
	Task    workflow.Task

	// Unchanged is true when the task already had the requested state; the
	// checklist was not touched and no rescan ran.
	Unchanged bool

	// Lines are the 1-based checklist lines whose marker changed.
	Lines []int

	// Relocated is true when the task had moved from its recorded line.
	Relocated bool

	// SkippedSubtasks are subtask lines that no longer held a subtask.
	SkippedSubtasks []int

	// Scan is the rescan that followed the edit.
	Scan *ScanResult
}

// StatusReport is a read-only view of the persisted snapshot.
type StatusReport struct {
	Snapshot *workflow.Snapshot
	Stats    storage.Stats
}

// Engine ties the scanner, the snapshot store and checklist edits together.
// Operations run sequentially; callers that need exclusion between scans
// (the watch loop) provide it themselves.
type Engine struct {
	layout   *workflow.Layout
	store    *storage.Store
	scanner  *Scanner
	notifier Notifier
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	excludes []string
	notifier Notifier
	logger   *slog.Logger
}

// WithExcludes skips feature directories matching doublestar patterns.
func WithExcludes(patterns ...string) Option {
	return func(o *engineOptions) {
		o.excludes = append(o.excludes, patterns...)
	}
}

// WithNotifier publishes events after snapshot changes.
func WithNotifier(n Notifier) Option {
	return func(o *engineOptions) {
		o.notifier = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine creates an engine over a specs layout and snapshot store.
func NewEngine(layout *workflow.Layout, store *storage.Store, opts ...Option) *Engine {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Engine{
		layout:   layout,
		store:    store,
		scanner:  NewScanner(layout, o.excludes, o.logger),
		notifier: o.notifier,
		logger:   o.logger,
	}
}

// Layout returns the specs layout.
func (e *Engine) Layout() *workflow.Layout {
	return e.layout
}

// CheckSpecsDir returns ErrSpecsDirMissing when the specs directory is absent.
func (e *Engine) CheckSpecsDir() error {
	if !e.layout.Exists() {
		return fmt.Errorf("%w: %s", ErrSpecsDirMissing, e.layout.SpecsPath())
	}
	return nil
}

// Scan rebuilds the snapshot from every checklist and persists it.
func (e *Engine) Scan(ctx context.Context) (*ScanResult, error) {
	result, err := e.scanner.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	if err := e.store.Save(result.Snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	e.logger.Info("Scan complete",
		"scan_id", result.ID,
		"features", result.Stats.Features,
		"tasks", result.Stats.Overall.Total,
		"completed", result.Stats.Overall.Completed,
		"file_errors", len(result.FileErrors),
		"duration", result.Duration)

	e.notify(ctx, Event{
		Kind:           EventSnapshotUpdated,
		ScanID:         result.ID,
		Timestamp:      *result.Snapshot.LastUpdated,
		Features:       result.Stats.Features,
		TotalTasks:     result.Stats.Overall.Total,
		CompletedTasks: result.Stats.Overall.Completed,
	})
	return result, nil
}

// Status loads the persisted snapshot and its stats.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &StatusReport{Snapshot: snap, Stats: storage.ComputeStats(snap)}, nil
}

// List loads the persisted snapshot keeping only features whose name
// contains filter, ignoring case. An empty filter keeps everything.
func (e *Engine) List(ctx context.Context, filter string) (*workflow.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if filter == "" {
		return snap, nil
	}

	needle := strings.ToLower(filter)
	filtered := &workflow.Snapshot{
		LastUpdated: snap.LastUpdated,
		Tasks:       make(map[string][]workflow.Task),
	}
	for feature, tasks := range snap.Tasks {
		if strings.Contains(strings.ToLower(feature), needle) {
			filtered.Tasks[feature] = tasks
		}
	}
	return filtered, nil
}

// Complete checks a task and all of its subtasks in the checklist, then
// rescans. Completing an already completed task succeeds without touching
// any file.
func (e *Engine) Complete(ctx context.Context, id string) (*CompletionResult, error) {
	return e.setCompleted(ctx, id, true)
}

// Reopen unchecks a completed task. Subtasks are left as they are.
func (e *Engine) Reopen(ctx context.Context, id string) (*CompletionResult, error) {
	return e.setCompleted(ctx, id, false)
}

func (e *Engine) setCompleted(ctx context.Context, id string, completed bool) (*CompletionResult, error) {
	if err := ValidateTaskID(id); err != nil {
		return nil, err
	}

	snap, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	task, ok := snap.FindTask(id)
	if !ok {
		return nil, &TaskNotFoundError{ID: id, Suggestions: Suggest(snap, id, maxSuggestions)}
	}

	result := &CompletionResult{Feature: task.Feature, Task: *task}
	if task.Completed == completed {
		result.Unchanged = true
		e.logger.Info("Task already in requested state", "task_id", id, "completed", completed)
		return result, nil
	}

	path := e.layout.TaskFilePath(task)
	edit, err := setTaskMarker(path, task, completed)
	if err != nil {
		return nil, err
	}
	result.Lines = edit.Lines
	result.Relocated = edit.Relocated
	result.SkippedSubtasks = edit.Skipped

	if edit.Relocated {
		e.logger.Warn("Task moved since last scan", "task_id", id, "recorded_line", task.LineNumber, "line", edit.MainLine)
	}
	if len(edit.Skipped) > 0 {
		e.logger.Warn("Subtask lines no longer match", "task_id", id, "lines", edit.Skipped)
	}
	e.logger.Info("Checklist updated", "task_id", id, "path", path, "completed", completed, "lines", edit.Lines)

	scan, err := e.Scan(ctx)
	if err != nil {
		return result, fmt.Errorf("rescan after update: %w", err)
	}
	result.Scan = scan
	updated, ok := scan.Snapshot.TaskAt(task.Feature, edit.MainLine)
	if !ok || updated.Completed != completed {
		return result, fmt.Errorf("%w: %s line %d", ErrUpdateNotApplied, id, edit.MainLine)
	}
	result.Task = *updated

	kind := EventTaskCompleted
	if !completed {
		kind = EventTaskReopened
	}
	e.notify(ctx, Event{
		Kind:           kind,
		ScanID:         scan.ID,
		TaskID:         id,
		Feature:        task.Feature,
		Timestamp:      *scan.Snapshot.LastUpdated,
		Features:       scan.Stats.Features,
		TotalTasks:     scan.Stats.Overall.Total,
		CompletedTasks: scan.Stats.Overall.Completed,
	})
	return result, nil
}

func (e *Engine) notify(ctx context.Context, event Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event", "kind", event.Kind, "error", err)
	}
}
