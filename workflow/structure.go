package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Directory constants for the specs structure.
const (
	RootDir        = ".kiro"
	SpecsDir       = "specs"
	TasksFile      = "tasks.md"
	TemplateDir    = "_template"
	StatusFile     = "tasks-status.json"
	StatusFileDir  = "scripts"
	featureDirPerm = 0755
)

// Layout resolves paths inside a specs directory: one subdirectory per
// feature, each holding a checklist file.
type Layout struct {
	specsDir  string
	tasksFile string
}

// NewLayout creates a layout rooted at specsDir. An empty tasksFile
// defaults to TasksFile.
func NewLayout(specsDir, tasksFile string) *Layout {
	if tasksFile == "" {
		tasksFile = TasksFile
	}
	return &Layout{specsDir: specsDir, tasksFile: tasksFile}
}

// DefaultSpecsPath returns <repoRoot>/.kiro/specs.
func DefaultSpecsPath(repoRoot string) string {
	return filepath.Join(repoRoot, RootDir, SpecsDir)
}

// DefaultStatusPath returns <repoRoot>/.kiro/scripts/tasks-status.json.
func DefaultStatusPath(repoRoot string) string {
	return filepath.Join(repoRoot, RootDir, StatusFileDir, StatusFile)
}

// SpecsPath returns the specs directory.
func (l *Layout) SpecsPath() string {
	return l.specsDir
}

// TasksFileName returns the checklist file name looked up in each feature.
func (l *Layout) TasksFileName() string {
	return l.tasksFile
}

// FeaturePath returns the directory of a feature.
func (l *Layout) FeaturePath(feature string) string {
	return filepath.Join(l.specsDir, feature)
}

// TasksPath returns the checklist file of a feature.
func (l *Layout) TasksPath(feature string) string {
	return filepath.Join(l.FeaturePath(feature), l.tasksFile)
}

// TaskFilePath returns the file a task was parsed from, falling back to the
// feature's checklist when the task carries no file name.
func (l *Layout) TaskFilePath(t *Task) string {
	if t.File == "" {
		return l.TasksPath(t.Feature)
	}
	return filepath.Join(l.FeaturePath(t.Feature), t.File)
}

// Exists reports whether the specs directory exists and is a directory.
func (l *Layout) Exists() bool {
	info, err := os.Stat(l.specsDir)
	return err == nil && info.IsDir()
}

// FeatureDirs returns the feature directory names in sorted order. The
// template directory is never returned.
func (l *Layout) FeatureDirs() ([]string, error) {
	entries, err := os.ReadDir(l.specsDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == TemplateDir {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// defaultChecklist seeds a new feature when the specs tree has no template.
const defaultChecklist = `# Tasks

### Phase 1:
- [ ] 1.1 Describe the first task
`

// TemplatePath returns the checklist of the template directory.
func (l *Layout) TemplatePath() string {
	return l.TasksPath(TemplateDir)
}

// CreateFeature creates a feature directory seeded with the template
// checklist, or a minimal checklist when no template exists. It fails if the
// feature already has a checklist and returns the created file path.
func (l *Layout) CreateFeature(feature string) (string, error) {
	if feature == "" || feature == "." || feature == ".." || feature == TemplateDir || feature != filepath.Base(feature) {
		return "", fmt.Errorf("invalid feature name %q", feature)
	}

	content := defaultChecklist
	if data, err := os.ReadFile(l.TemplatePath()); err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read template: %w", err)
	}

	dir := l.FeaturePath(feature)
	if err := os.MkdirAll(dir, featureDirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := l.TasksPath(feature)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("create tasks file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write tasks file: %w", err)
	}
	return path, f.Close()
}
