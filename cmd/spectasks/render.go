package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/c360studio/spectasks/storage"
	"github.com/c360studio/spectasks/tasksync"
	"github.com/c360studio/spectasks/workflow"
)

const barWidth = 20

// styles are bound to one output so colour is only emitted on terminals.
type styles struct {
	title   lipgloss.Style
	done    lipgloss.Style
	pending lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true),
		done:    r.NewStyle().Foreground(lipgloss.Color("2")),
		pending: r.NewStyle().Foreground(lipgloss.Color("3")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// progressBar renders percent as a fixed-width bar.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

// renderProgressLine prints one labelled bar with counts.
func renderProgressLine(w io.Writer, st styles, label string, c storage.Counts, labelWidth int) {
	style := st.pending
	if c.Total > 0 && c.Completed == c.Total {
		style = st.done
	}
	fmt.Fprintf(w, "  %-*s %s %3d%%  %d/%d tasks",
		labelWidth, label, style.Render(progressBar(c.Percent(), barWidth)), c.Percent(), c.Completed, c.Total)
	if c.Subtasks > 0 {
		fmt.Fprint(w, st.muted.Render(fmt.Sprintf(", %d/%d subtasks", c.CompletedSubtasks, c.Subtasks)))
	}
	fmt.Fprintln(w)
}

// renderStatus prints per-feature and overall progress.
func renderStatus(w io.Writer, report *tasksync.StatusReport) {
	st := newStyles(w)
	snap := report.Snapshot

	if snap.LastUpdated == nil {
		fmt.Fprintln(w, "No snapshot yet. Run 'spectasks scan' first.")
		return
	}

	fmt.Fprintln(w, st.title.Render("Task status"))
	fmt.Fprintln(w, st.muted.Render("Last updated: "+formatTime(snap.LastUpdated)))
	fmt.Fprintln(w)

	features := snap.Features()
	if len(features) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	labelWidth := len("Overall")
	for _, f := range features {
		labelWidth = max(labelWidth, len(f))
	}

	for _, f := range features {
		renderProgressLine(w, st, f, report.Stats.ByFeature[f], labelWidth)
	}
	fmt.Fprintln(w)
	renderProgressLine(w, st, "Overall", report.Stats.Overall, labelWidth)
}

// renderList prints every task grouped by feature and phase.
func renderList(w io.Writer, snap *workflow.Snapshot) {
	st := newStyles(w)

	features := snap.Features()
	if len(features) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}

	for i, f := range features {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, st.title.Render(f))

		phase := ""
		for _, t := range snap.Tasks[f] {
			if p := t.PhaseName(); p != phase {
				phase = p
				fmt.Fprintln(w, "  "+st.muted.Render(phase))
			}

			marker := st.pending.Render("[ ]")
			if t.Completed {
				marker = st.done.Render("[x]")
			}
			line := fmt.Sprintf("    %s %s %s", marker, t.ID, t.Description)
			if n := len(t.Subtasks); n > 0 {
				line += st.muted.Render(fmt.Sprintf(" (%d/%d subtasks)", t.CompletedSubtasks(), n))
			}
			fmt.Fprintln(w, line)
		}
	}
}

// renderScan prints a scan summary and warnings for unreadable files.
func renderScan(w, errw io.Writer, result *tasksync.ScanResult) {
	st := newStyles(w)
	ew := newStyles(errw)

	for _, fe := range result.FileErrors {
		fmt.Fprintln(errw, ew.warn.Render("warning: ")+fe.Error())
	}
	for _, f := range slices.Sorted(maps.Keys(result.Duplicates)) {
		fmt.Fprintf(errw, "%s%s has duplicate task ids: %s\n",
			ew.warn.Render("warning: "), f, strings.Join(result.Duplicates[f], ", "))
	}

	overall := result.Stats.Overall
	fmt.Fprintf(w, "%s %d features, %d/%d tasks complete (%d%%)\n",
		st.done.Render("Scanned"), result.Stats.Features, overall.Completed, overall.Total, overall.Percent())
}

// renderCompletion prints the outcome of complete or reopen.
func renderCompletion(w io.Writer, result *tasksync.CompletionResult, completed bool) {
	st := newStyles(w)
	t := result.Task

	verb, state := "Completed", "complete"
	if !completed {
		verb, state = "Reopened", "open"
	}

	if result.Unchanged {
		fmt.Fprintf(w, "Task %s is already %s: %s\n", t.ID, state, t.Description)
		return
	}

	fmt.Fprintf(w, "%s %s: %s\n", st.done.Render(verb), t.ID, t.Description)
	if len(result.Lines) > 1 {
		fmt.Fprintf(w, "  %d checklist lines updated\n", len(result.Lines))
	}
	if result.Relocated {
		fmt.Fprintln(w, st.muted.Render("  task had moved since the last scan"))
	}
	for _, line := range result.SkippedSubtasks {
		fmt.Fprintf(w, "  %s subtask line %d no longer matched\n", st.warn.Render("skipped"), line)
	}

	if result.Scan != nil {
		c := result.Scan.Stats.ByFeature[result.Feature]
		fmt.Fprintf(w, "  %s %s %d%%\n", result.Feature, progressBar(c.Percent(), barWidth), c.Percent())
	}
}

// renderNotFound prints similar task IDs for an unknown ID.
func renderNotFound(w io.Writer, err *tasksync.TaskNotFoundError) {
	if len(err.Suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, "Similar tasks:")
	for _, id := range err.Suggestions {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
