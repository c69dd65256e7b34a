package workflow

import (
	"regexp"
	"strings"
)

// LineKind identifies what a single checklist line represents.
type LineKind int

// Line kinds produced by ClassifyLine.
const (
	LineProse LineKind = iota
	LineBlank
	LinePhase
	LineMainTask
	LineSubtask
	LineMetadata
)

// String returns the line kind name.
func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LinePhase:
		return "phase"
	case LineMainTask:
		return "main_task"
	case LineSubtask:
		return "subtask"
	case LineMetadata:
		return "metadata"
	default:
		return "prose"
	}
}

// LineClass is the classification of one line plus the captured fields.
type LineClass struct {
	Kind LineKind

	// Phase is set for LinePhase.
	Phase string

	// Checked is set for LineMainTask and LineSubtask.
	Checked bool

	// Text is the checkbox text, trimmed, for LineMainTask and LineSubtask.
	Text string
}

// IsCheckbox reports whether the line is a main task or subtask line.
func (c LineClass) IsCheckbox() bool {
	return c.Kind == LineMainTask || c.Kind == LineSubtask
}

// phasePattern matches phase headings: ### Phase 1:
var phasePattern = regexp.MustCompile(`^###\s+(.*?):`)

// checkboxPattern matches checkbox items: - [ ] or - [x]
var checkboxPattern = regexp.MustCompile(`^-\s+\[([ x])\]\s+(.+)`)

// numberedPattern matches a leading "<int>.<int>" token in checkbox text.
var numberedPattern = regexp.MustCompile(`^(\d+\.\d+)\s+(.+)`)

// tokenPattern matches a bare "<int>.<int>" token.
var tokenPattern = regexp.MustCompile(`^\d+\.\d+$`)

// markerPattern captures the prefix up to and including a checkbox marker.
var markerPattern = regexp.MustCompile(`^(\s*-\s+)\[([ x])\]`)

// subtaskIndent is the minimum leading indentation of a subtask line.
const subtaskIndent = "  "

// MetadataPrefixes are annotation lines skipped while reading subtasks.
var MetadataPrefixes = []string{
	"_Requirements:",
	"_Estimated:",
	"Requirements:",
	"Estimated:",
}

// ClassifyLine classifies a raw checklist line. Patterns are matched against
// the whitespace-trimmed line; indentation only decides whether a checkbox is
// a subtask candidate.
func ClassifyLine(raw string) LineClass {
	line := strings.TrimSpace(raw)
	if line == "" {
		return LineClass{Kind: LineBlank}
	}

	if m := phasePattern.FindStringSubmatch(line); m != nil {
		return LineClass{Kind: LinePhase, Phase: strings.TrimSpace(m[1])}
	}

	if m := checkboxPattern.FindStringSubmatch(line); m != nil {
		kind := LineMainTask
		if strings.HasPrefix(raw, subtaskIndent) {
			kind = LineSubtask
		}
		return LineClass{
			Kind:    kind,
			Checked: m[1] == "x",
			Text:    strings.TrimSpace(m[2]),
		}
	}

	for _, prefix := range MetadataPrefixes {
		if strings.HasPrefix(line, prefix) {
			return LineClass{Kind: LineMetadata}
		}
	}

	return LineClass{Kind: LineProse}
}

// SplitNumbered splits checkbox text into its "<int>.<int>" token and the
// remaining description. ok is false when the text has no token.
func SplitNumbered(text string) (token, description string, ok bool) {
	m := numberedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", text, false
	}
	return m[1], m[2], true
}

// IsNumberedToken reports whether s is an "<int>.<int>" token.
func IsNumberedToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// SetMarker rewrites the checkbox marker of a line, preserving everything
// else byte for byte. ok is false when the line carries no marker.
func SetMarker(line string, checked bool) (string, bool) {
	loc := markerPattern.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, false
	}
	// loc[4]:loc[5] is the marker character between the brackets.
	mark := " "
	if checked {
		mark = "x"
	}
	return line[:loc[4]] + mark + line[loc[5]:], true
}
