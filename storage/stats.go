package storage

import (
	"github.com/c360studio/spectasks/workflow"
)

// Counts aggregates task and subtask completion.
type Counts struct {
	Total             int `json:"total"`
	Completed         int `json:"completed"`
	Pending           int `json:"pending"`
	Subtasks          int `json:"subtasks"`
	CompletedSubtasks int `json:"completedSubtasks"`
}

// Percent returns completed tasks as a rounded percentage, 0 when there are
// no tasks.
func (c Counts) Percent() int {
	return percent(c.Completed, c.Total)
}

// SubtaskPercent returns completed subtasks as a rounded percentage, 0 when
// there are no subtasks.
func (c Counts) SubtaskPercent() int {
	return percent(c.CompletedSubtasks, c.Subtasks)
}

func (c *Counts) add(t *workflow.Task) {
	c.Total++
	if t.Completed {
		c.Completed++
	} else {
		c.Pending++
	}
	c.Subtasks += len(t.Subtasks)
	c.CompletedSubtasks += t.CompletedSubtasks()
}

// Stats holds per-feature and overall counts for a snapshot.
type Stats struct {
	Features  int               `json:"totalFeatures"`
	Overall   Counts            `json:"overall"`
	ByFeature map[string]Counts `json:"byFeature"`
}

// ComputeStats derives counts from a snapshot.
func ComputeStats(snap *workflow.Snapshot) Stats {
	stats := Stats{ByFeature: make(map[string]Counts)}
	if snap == nil {
		return stats
	}

	stats.Features = len(snap.Tasks)
	for feature, tasks := range snap.Tasks {
		var fc Counts
		for i := range tasks {
			fc.add(&tasks[i])
			stats.Overall.add(&tasks[i])
		}
		stats.ByFeature[feature] = fc
	}
	return stats
}

// percent rounds half up and guards a zero denominator.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (part*200 + whole) / (whole * 2)
}
