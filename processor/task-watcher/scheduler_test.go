package taskwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDebounce = 100 * time.Millisecond
	waitFor      = 3 * time.Second
	tick         = 10 * time.Millisecond
)

// countingScan counts calls and optionally blocks until release is closed.
type countingScan struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (c *countingScan) scan(ctx context.Context) error {
	c.calls.Add(1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
		}
	}
	return c.err
}

// startScheduler runs a scheduler over a fresh specs directory and stops it
// when the test ends.
func startScheduler(t *testing.T, scan ScanFunc) (*Scheduler, *Metrics, string) {
	t.Helper()

	specsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(specsDir, "demo"), 0755))

	metrics := NewMetrics(prometheus.NewRegistry())
	s := New(Config{Debounce: testDebounce}, specsDir, scan, WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("scheduler did not stop")
		}
	})
	return s, metrics, specsDir
}

func writeTasks(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(content), 0644))
}

func TestScheduler_InitialScan(t *testing.T) {
	counter := &countingScan{}
	_, metrics, _ := startScheduler(t, counter.scan)

	require.Eventually(t, func() bool { return counter.calls.Load() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.scans.WithLabelValues(resultOK)) == 1
	}, waitFor, tick)
}

func TestScheduler_DebouncesBursts(t *testing.T) {
	counter := &countingScan{}
	_, metrics, specsDir := startScheduler(t, counter.scan)
	require.Eventually(t, func() bool { return counter.calls.Load() == 1 }, waitFor, tick)

	// Give the watch time to register before writing.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		writeTasks(t, filepath.Join(specsDir, "demo"), "- [ ] 1.1 Task\n")
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return counter.calls.Load() == 2 }, waitFor, tick)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(2), counter.calls.Load())
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.events), float64(1))
}

func TestScheduler_IgnoresOtherFiles(t *testing.T) {
	counter := &countingScan{}
	_, metrics, specsDir := startScheduler(t, counter.scan)
	require.Eventually(t, func() bool { return counter.calls.Load() == 1 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(specsDir, "demo", "design.md"), []byte("notes"), 0644))

	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), counter.calls.Load())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.events))
}

func TestScheduler_WatchesNewFeatureDirs(t *testing.T) {
	counter := &countingScan{}
	_, _, specsDir := startScheduler(t, counter.scan)
	require.Eventually(t, func() bool { return counter.calls.Load() == 1 }, waitFor, tick)

	time.Sleep(50 * time.Millisecond)
	feature := filepath.Join(specsDir, "new-feature")
	require.NoError(t, os.Mkdir(feature, 0755))
	time.Sleep(50 * time.Millisecond)
	writeTasks(t, feature, "- [ ] 1.1 New\n")

	require.Eventually(t, func() bool { return counter.calls.Load() >= 2 }, waitFor, tick)
}

func TestScheduler_DropsTriggersWhileScanning(t *testing.T) {
	counter := &countingScan{release: make(chan struct{})}
	s, metrics, _ := startScheduler(t, counter.scan)

	// The initial scan blocks, so further triggers are dropped.
	require.Eventually(t, s.Scanning, waitFor, tick)
	require.Eventually(t, func() bool {
		s.Trigger()
		return testutil.ToFloat64(metrics.dropped) >= 1
	}, waitFor, tick)
	assert.Equal(t, int32(1), counter.calls.Load())

	close(counter.release)
	require.Eventually(t, func() bool { return !s.Scanning() }, waitFor, tick)

	// Once the permit is free a trigger starts a new scan.
	s.Trigger()
	require.Eventually(t, func() bool { return counter.calls.Load() >= 2 }, waitFor, tick)
}

func TestScheduler_RecordsFailures(t *testing.T) {
	counter := &countingScan{err: errors.New("boom")}
	_, metrics, _ := startScheduler(t, counter.scan)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.scans.WithLabelValues(resultError)) == 1
	}, waitFor, tick)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.scans.WithLabelValues(resultOK)))
}

func TestScheduler_RunMissingDir(t *testing.T) {
	s := New(Config{}, filepath.Join(t.TempDir(), "missing"), (&countingScan{}).scan)
	assert.Error(t, s.Run(context.Background()))
}

func TestScheduler_Qualifies(t *testing.T) {
	s := New(Config{}, "/specs", nil)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write checklist", fsnotify.Event{Name: "/specs/demo/tasks.md", Op: fsnotify.Write}, true},
		{"create checklist", fsnotify.Event{Name: "/specs/demo/tasks.md", Op: fsnotify.Create}, true},
		{"remove checklist", fsnotify.Event{Name: "/specs/demo/tasks.md", Op: fsnotify.Remove}, true},
		{"rename checklist", fsnotify.Event{Name: "/specs/demo/tasks.md", Op: fsnotify.Rename}, true},
		{"chmod checklist", fsnotify.Event{Name: "/specs/demo/tasks.md", Op: fsnotify.Chmod}, false},
		{"other markdown", fsnotify.Event{Name: "/specs/demo/design.md", Op: fsnotify.Write}, false},
		{"editor swap file", fsnotify.Event{Name: "/specs/demo/.tasks.md.swp", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.qualifies(tt.event))
		})
	}
}

func TestScheduler_SkipDir(t *testing.T) {
	s := New(Config{ExcludeDirs: []string{"archive"}}, "/specs/.hidden-root", nil)

	assert.False(t, s.skipDir("/specs/.hidden-root"))
	assert.False(t, s.skipDir("/specs/.hidden-root/demo"))
	assert.True(t, s.skipDir("/specs/.hidden-root/archive"))
	assert.True(t, s.skipDir("/specs/.hidden-root/.git"))
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultDebounce, c.Debounce)
	assert.Equal(t, "tasks.md", c.TasksFile)
	assert.Equal(t, []string{".git", "node_modules"}, c.ExcludeDirs)

	c = Config{Debounce: time.Millisecond, TasksFile: "todo.md", ExcludeDirs: []string{}}.withDefaults()
	assert.Equal(t, time.Millisecond, c.Debounce)
	assert.Equal(t, "todo.md", c.TasksFile)
	assert.Empty(t, c.ExcludeDirs)
}
