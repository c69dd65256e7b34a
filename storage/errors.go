package storage

import "errors"

// Common storage errors.
var (
	// ErrSnapshotRead is returned when the snapshot file exists but cannot be read.
	ErrSnapshotRead = errors.New("snapshot read failed")

	// ErrSnapshotCorrupt is returned when the snapshot file is not a valid snapshot document.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrSnapshotWrite is returned when the snapshot cannot be persisted.
	ErrSnapshotWrite = errors.New("snapshot write failed")
)
