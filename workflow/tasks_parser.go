package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// parseState is the parser's position relative to the last main task.
type parseState int

const (
	// stateDefault looks for phase headings and main tasks.
	stateDefault parseState = iota

	// stateSubtaskLookahead collects subtasks of the most recent main task.
	stateSubtaskLookahead
)

// taskParser is a single left-to-right pass over one checklist file.
type taskParser struct {
	feature string
	file    string

	state   parseState
	phase   *string
	counter int

	tasks   []Task
	current *Task
}

// ParseTasks parses checklist content for a feature into tasks in document
// order. It never fails: lines that match no pattern are ignored.
func ParseTasks(content, feature, file string) []Task {
	p := &taskParser{feature: feature, file: file}

	for i, line := range strings.Split(content, "\n") {
		p.feed(i+1, ClassifyLine(line))
	}
	p.flush()

	return p.tasks
}

// ParseTasksFile reads and parses a checklist file. The file name recorded
// on each task is the base name of path.
func ParseTasksFile(path, feature string) ([]Task, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	return ParseTasks(string(content), feature, filepath.Base(path)), nil
}

// feed advances the state machine by one classified line.
func (p *taskParser) feed(lineNumber int, c LineClass) {
	if p.state == stateSubtaskLookahead {
		switch c.Kind {
		case LineSubtask:
			p.current.Subtasks = append(p.current.Subtasks, Subtask{
				Description: c.Text,
				Completed:   c.Checked,
				LineNumber:  lineNumber,
			})
			return
		case LineBlank, LineMetadata:
			return
		}
		// Anything else ends the lookahead and is handled as a fresh line.
		p.flush()
	}

	switch c.Kind {
	case LinePhase:
		phase := c.Phase
		p.phase = &phase
	case LineMainTask, LineSubtask:
		p.startTask(lineNumber, c)
	}
}

// startTask opens a main task and enters subtask lookahead.
func (p *taskParser) startTask(lineNumber int, c LineClass) {
	p.counter++

	id := p.feature + "-" + strconv.Itoa(p.counter)
	description := c.Text
	if token, rest, ok := SplitNumbered(c.Text); ok {
		id = p.feature + "-" + token
		description = rest
	}

	p.current = &Task{
		ID:          id,
		Feature:     p.feature,
		Description: description,
		Completed:   c.Checked,
		Phase:       p.phase,
		File:        p.file,
		LineNumber:  lineNumber,
	}
	p.state = stateSubtaskLookahead
}

// flush closes the open task, if any.
func (p *taskParser) flush() {
	if p.current != nil {
		p.tasks = append(p.tasks, *p.current)
		p.current = nil
	}
	p.state = stateDefault
}

// DuplicateIDs returns task IDs that occur more than once, in first-seen
// order. Mixing numbered and unnumbered tasks in one file can produce them.
func DuplicateIDs(tasks []Task) []string {
	seen := make(map[string]int, len(tasks))
	var dups []string
	for _, t := range tasks {
		seen[t.ID]++
		if seen[t.ID] == 2 {
			dups = append(dups, t.ID)
		}
	}
	return dups
}

// GetTaskStats returns summary statistics for parsed tasks.
func GetTaskStats(tasks []Task) (total, completed int) {
	total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	return total, completed
}
