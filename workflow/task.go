package workflow

import (
	"encoding/json"
	"sort"
	"time"
)

// Task is a main checklist entry parsed from a feature's tasks.md.
type Task struct {
	// ID is "<feature>-<token>" for numbered tasks (e.g., "demo-1.1") or
	// "<feature>-<n>" where n counts main tasks within the file.
	ID string `json:"id"`

	// Feature is the owning feature directory. It is the snapshot map key
	// and is not serialized on the task itself.
	Feature string `json:"-"`

	// Description is the task text with any numeric token removed.
	Description string `json:"description"`

	// Completed mirrors the literal checkbox marker.
	Completed bool `json:"completed"`

	// Phase is the last "### Name:" heading seen before the task, nil if none.
	Phase *string `json:"phase"`

	// File is the checklist file name relative to the feature directory.
	File string `json:"file"`

	// LineNumber is the 1-based line of the task in File.
	LineNumber int `json:"lineNumber"`

	// Subtasks are the indented checkbox lines directly under the task.
	Subtasks []Subtask `json:"subtasks"`
}

// Subtask is an indented checkbox line owned by a Task.
type Subtask struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	LineNumber  int    `json:"lineNumber"`
}

// PhaseName returns the phase or an empty string.
func (t *Task) PhaseName() string {
	if t.Phase == nil {
		return ""
	}
	return *t.Phase
}

// CompletedSubtasks counts subtasks whose marker is checked.
func (t *Task) CompletedSubtasks() int {
	n := 0
	for _, st := range t.Subtasks {
		if st.Completed {
			n++
		}
	}
	return n
}

// MarshalJSON keeps "subtasks" an array even when the task has none.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	p := plain(t)
	if p.Subtasks == nil {
		p.Subtasks = []Subtask{}
	}
	return json.Marshal(p)
}

// Snapshot is the derived status cache of every feature's tasks.
type Snapshot struct {
	// LastUpdated is when the snapshot was last rebuilt, nil if never scanned.
	LastUpdated *time.Time `json:"lastUpdated"`

	// Tasks maps feature name to its tasks in document order.
	Tasks map[string][]Task `json:"tasks"`
}

// NewSnapshot returns an empty snapshot that has never been scanned.
func NewSnapshot() *Snapshot {
	return &Snapshot{Tasks: make(map[string][]Task)}
}

// UnmarshalJSON restores Feature on every task from its map key.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type plain Snapshot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Tasks == nil {
		p.Tasks = make(map[string][]Task)
	}
	for feature, tasks := range p.Tasks {
		for i := range tasks {
			tasks[i].Feature = feature
			if len(tasks[i].Subtasks) == 0 {
				tasks[i].Subtasks = nil
			}
		}
	}
	*s = Snapshot(p)
	return nil
}

// Features returns the feature names in sorted order.
func (s *Snapshot) Features() []string {
	names := make([]string, 0, len(s.Tasks))
	for name := range s.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindTask looks up a task by ID, searching features in sorted order.
func (s *Snapshot) FindTask(id string) (*Task, bool) {
	for _, feature := range s.Features() {
		tasks := s.Tasks[feature]
		for i := range tasks {
			if tasks[i].ID == id {
				return &tasks[i], true
			}
		}
	}
	return nil, false
}

// TaskAt returns the feature's main task starting on the given 1-based line.
func (s *Snapshot) TaskAt(feature string, line int) (*Task, bool) {
	tasks := s.Tasks[feature]
	for i := range tasks {
		if tasks[i].LineNumber == line {
			return &tasks[i], true
		}
	}
	return nil, false
}

// IsEmpty reports whether the snapshot holds no tasks.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Tasks) == 0
}
