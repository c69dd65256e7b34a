package tasksync

import (
	"errors"
	"fmt"
	"strings"
)

// Sync errors.
var (
	// ErrSpecsDirMissing is returned when the specs directory does not exist.
	ErrSpecsDirMissing = errors.New("specs directory not found")

	// ErrFileRead marks a checklist file that exists but cannot be read.
	ErrFileRead = errors.New("checklist read failed")

	// ErrTaskNotFound is returned when no task in the snapshot has the requested ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTaskID is returned for IDs that cannot name a task.
	ErrInvalidTaskID = errors.New("invalid task id")

	// ErrTaskLineNotFound is returned when the task's line cannot be located
	// in its checklist file.
	ErrTaskLineNotFound = errors.New("task line not found in checklist")

	// ErrUpdateNotApplied is returned when the rescan after a checklist edit
	// does not show the task in the requested state.
	ErrUpdateNotApplied = errors.New("checklist update not applied")

	// ErrWriteFailure is returned when a checklist file cannot be rewritten.
	ErrWriteFailure = errors.New("checklist write failed")
)

// FileError records a checklist file that could not be read during a scan.
// The scan continues with the remaining features.
type FileError struct {
	Feature string
	Path    string
	Err     error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("read %s (feature %s): %v", e.Path, e.Feature, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Is reports FileError as ErrFileRead.
func (e *FileError) Is(target error) bool {
	return target == ErrFileRead
}

// TaskNotFoundError carries the requested ID and similar IDs from the snapshot.
type TaskNotFoundError struct {
	ID          string
	Suggestions []string
}

func (e *TaskNotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("task %s not found", e.ID)
	}
	return fmt.Sprintf("task %s not found (did you mean: %s?)", e.ID, strings.Join(e.Suggestions, ", "))
}

// Is reports TaskNotFoundError as ErrTaskNotFound.
func (e *TaskNotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound
}

// ValidateTaskID rejects IDs without a "<feature>-" prefix.
func ValidateTaskID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTaskID)
	}
	if !strings.Contains(id, "-") {
		return fmt.Errorf("%w: %q must look like <feature>-<number>", ErrInvalidTaskID, id)
	}
	return nil
}
