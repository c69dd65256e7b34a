// Package storage persists the task status snapshot as a JSON file.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/spectasks/workflow"
)

// snapshotFileMode is applied to newly written snapshot files.
const snapshotFileMode = 0644

// Store reads and writes the snapshot file. The file is always replaced as a
// whole; there is no locking between processes.
type Store struct {
	path     string
	validate bool
	logger   *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSchemaValidation toggles JSON Schema validation on Load.
func WithSchemaValidation(enabled bool) StoreOption {
	return func(s *Store) {
		s.validate = enabled
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a store backed by the file at path. Schema validation is
// on by default.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:     path,
		validate: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted snapshot. A missing file yields an empty,
// never-scanned snapshot and no error.
func (s *Store) Load() (*workflow.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("No snapshot yet", "path", s.path)
			return workflow.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotRead, s.path, err)
	}

	if s.validate {
		if err := validateSnapshot(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, s.path, err)
		}
	}

	snap := workflow.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshotCorrupt, s.path, err)
	}
	return snap, nil
}

// Save overwrites the snapshot file with snap. The document is written to a
// temporary file in the same directory and renamed into place.
func (s *Store) Save(snap *workflow.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSnapshotWrite, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create directory %s: %w", ErrSnapshotWrite, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	if err := tmp.Chmod(snapshotFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotWrite, err)
	}

	s.logger.Debug("Snapshot saved", "path", s.path, "features", len(snap.Tasks))
	return nil
}

// Encode renders a snapshot as indented JSON. Feature keys are sorted and
// tasks keep document order, so equal snapshots encode to equal bytes.
func Encode(snap *workflow.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = workflow.NewSnapshot()
	}
	if snap.Tasks == nil {
		snap.Tasks = make(map[string][]workflow.Task)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
