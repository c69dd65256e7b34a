package tasksync

import (
	"fmt"
	"os"
	"strings"

	"github.com/c360studio/spectasks/workflow"
)

// maxSuggestions caps the similar IDs reported for an unknown task.
const maxSuggestions = 3

// fileEdit describes a rewrite of one checklist file.
type fileEdit struct {
	// MainLine is the 1-based line the task was found on.
	MainLine int

	// Lines are the 1-based lines whose marker changed.
	Lines []int

	// Skipped are recorded subtask lines that no longer hold a subtask.
	Skipped []int

	// Relocated is true when the recorded line number no longer pointed at
	// the task and the file was searched instead.
	Relocated bool
}

// setTaskMarker rewrites the task's checkbox in path. When checking a task,
// its recorded subtasks are checked in the same write. Lines other than the
// targeted ones are preserved exactly.
func setTaskMarker(path string, task *workflow.Task, checked bool) (*fileEdit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	lines := strings.Split(string(content), "\n")
	idx, relocated := locateTask(lines, task)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s line %d in %s", ErrTaskLineNotFound, task.ID, task.LineNumber, path)
	}

	edit := &fileEdit{MainLine: idx + 1, Relocated: relocated}
	edit.mark(lines, idx, checked)

	// Cascade is parent to children only and only when checking.
	if checked {
		offset := (idx + 1) - task.LineNumber
		for _, st := range task.Subtasks {
			j := st.LineNumber + offset - 1
			if j < 0 || j >= len(lines) || workflow.ClassifyLine(lines[j]).Kind != workflow.LineSubtask {
				edit.Skipped = append(edit.Skipped, st.LineNumber+offset)
				continue
			}
			edit.mark(lines, j, true)
		}
	}

	updated := strings.Join(lines, "\n")
	if updated == string(content) {
		return edit, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailure, path, err)
	}
	return edit, nil
}

// mark sets the marker of lines[i] and records the line if it changed.
func (e *fileEdit) mark(lines []string, i int, checked bool) {
	updated, ok := workflow.SetMarker(lines[i], checked)
	if ok && updated != lines[i] {
		lines[i] = updated
		e.Lines = append(e.Lines, i+1)
	}
}

// locateTask returns the 0-based index of the task's line, or -1. The lines
// are parsed with the checklist grammar so only main-task lines qualify.
// Exact matches win over loose ones, and at each strength the recorded line
// number wins over the first match elsewhere in the file.
func locateTask(lines []string, task *workflow.Task) (int, bool) {
	parsed := workflow.ParseTasks(strings.Join(lines, "\n"), task.Feature, task.File)
	token := numericToken(task)

	for _, loose := range []bool{false, true} {
		if loose && token != "" {
			break
		}
		for i := range parsed {
			if parsed[i].LineNumber == task.LineNumber && sameTask(&parsed[i], task, token, loose) {
				return task.LineNumber - 1, false
			}
		}
		for i := range parsed {
			if sameTask(&parsed[i], task, token, loose) {
				return parsed[i].LineNumber - 1, true
			}
		}
	}
	return -1, false
}

// sameTask reports whether a freshly parsed task is the recorded one.
// Numbered tasks match on their token only. Unnumbered tasks never match a
// numbered line; they match on an equal description, or with loose set on a
// line whose description contains it.
func sameTask(candidate, task *workflow.Task, token string, loose bool) bool {
	if token != "" {
		return candidate.ID == task.ID
	}
	if task.Description == "" || numericToken(candidate) != "" {
		return false
	}
	if loose {
		return strings.Contains(candidate.Description, task.Description)
	}
	return candidate.Description == task.Description
}

// numericToken returns the "<int>.<int>" suffix of a numbered task ID.
func numericToken(task *workflow.Task) string {
	suffix := strings.TrimPrefix(task.ID, task.Feature+"-")
	if suffix == task.ID || !workflow.IsNumberedToken(suffix) {
		return ""
	}
	return suffix
}

// Suggest returns up to limit task IDs similar to id: IDs sharing its
// feature prefix, or tasks whose feature name appears in id.
func Suggest(snap *workflow.Snapshot, id string, limit int) []string {
	prefix := id
	if i := strings.LastIndex(id, "-"); i > 0 {
		prefix = id[:i]
	}

	var out []string
	for _, feature := range snap.Features() {
		for _, t := range snap.Tasks[feature] {
			if strings.HasPrefix(t.ID, prefix+"-") || strings.Contains(id, feature) {
				out = append(out, t.ID)
				if len(out) == limit {
					return out
				}
			}
		}
	}
	return out
}
