package taskwatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ScanFunc runs one full rescan.
type ScanFunc func(ctx context.Context) error

// Scheduler turns checklist file events into rescans.
type Scheduler struct {
	config   Config
	specsDir string
	scan     ScanFunc
	logger   *slog.Logger
	metrics  *Metrics
	excludes map[string]bool

	// permit holds a token while a scan runs.
	permit chan struct{}

	// triggers carries manual scan requests into the event loop.
	triggers chan struct{}

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records scheduler activity in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a scheduler that calls scan for changes under specsDir.
func New(config Config, specsDir string, scan ScanFunc, opts ...Option) *Scheduler {
	config = config.withDefaults()

	excludes := make(map[string]bool, len(config.ExcludeDirs))
	for _, dir := range config.ExcludeDirs {
		excludes[dir] = true
	}

	s := &Scheduler{
		config:   config,
		specsDir: specsDir,
		scan:     scan,
		logger:   slog.Default(),
		metrics:  NewMetrics(nil),
		excludes: excludes,
		permit:   make(chan struct{}, 1),
		triggers: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger requests a scan without waiting for a file event. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.triggers <- struct{}{}:
	default:
	}
}

// Scanning reports whether a scan is in flight.
func (s *Scheduler) Scanning() bool {
	return len(s.permit) == 1
}

// Run scans once, then watches until ctx is cancelled. It waits for an
// in-flight scan before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := s.addWatchesRecursive(fsw, s.specsDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.specsDir, err)
	}

	s.logger.Info("Task watcher started",
		"specs_dir", s.specsDir,
		"tasks_file", s.config.TasksFile,
		"debounce", s.config.Debounce)

	s.fire(ctx)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		s.wg.Wait()
		s.logger.Info("Task watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !s.handleFSEvent(fsw, event) {
				continue
			}
			s.metrics.events.Inc()
			if timer == nil {
				timer = time.NewTimer(s.config.Debounce)
			} else {
				timer.Reset(s.config.Debounce)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Watcher error", "error", err)

		case <-timerC:
			timerC = nil
			s.fire(ctx)

		case <-s.triggers:
			s.fire(ctx)
		}
	}
}

// fire starts a scan unless one is already running.
func (s *Scheduler) fire(ctx context.Context) {
	select {
	case s.permit <- struct{}{}:
	default:
		s.metrics.dropped.Inc()
		s.logger.Debug("Scan in progress, dropping trigger")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.permit }()

		start := time.Now()
		err := s.scan(ctx)
		s.metrics.scanDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			s.metrics.scans.WithLabelValues(resultError).Inc()
			s.logger.Error("Scan failed", "error", err)
			return
		}
		s.metrics.scans.WithLabelValues(resultOK).Inc()
	}()
}

// handleFSEvent reports whether event should re-arm the debounce timer.
// New directories are watched as they appear.
func (s *Scheduler) handleFSEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if s.skipDir(event.Name) {
				return false
			}
			if err := s.addWatchesRecursive(fsw, event.Name); err != nil {
				s.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			// The checklist may have been written before the watch existed.
			_, err := os.Stat(filepath.Join(event.Name, s.config.TasksFile))
			return err == nil
		}
	}

	if !s.qualifies(event) {
		return false
	}
	s.logger.Debug("Checklist change detected", "path", event.Name, "op", event.Op.String())
	return true
}

// qualifies reports whether event touches a checklist file.
func (s *Scheduler) qualifies(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != s.config.TasksFile {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// skipDir reports whether a directory below the specs root is excluded or hidden.
func (s *Scheduler) skipDir(path string) bool {
	if filepath.Clean(path) == filepath.Clean(s.specsDir) {
		return false
	}
	base := filepath.Base(path)
	return s.excludes[base] || strings.HasPrefix(base, ".")
}

// addWatchesRecursive watches root and every directory below it.
func (s *Scheduler) addWatchesRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if s.skipDir(path) {
			return filepath.SkipDir
		}

		if err := fsw.Add(path); err != nil {
			s.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			s.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}
