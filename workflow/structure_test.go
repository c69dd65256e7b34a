package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayout_Paths(t *testing.T) {
	l := NewLayout("/repo/.kiro/specs", "")

	if got := l.TasksFileName(); got != TasksFile {
		t.Errorf("TasksFileName() = %q, want %q", got, TasksFile)
	}
	if got := l.TasksPath("auth"); got != filepath.Join("/repo/.kiro/specs", "auth", "tasks.md") {
		t.Errorf("TasksPath() = %q", got)
	}

	task := &Task{Feature: "auth", File: "todo.md"}
	if got := l.TaskFilePath(task); got != filepath.Join("/repo/.kiro/specs", "auth", "todo.md") {
		t.Errorf("TaskFilePath() = %q", got)
	}
	task.File = ""
	if got := l.TaskFilePath(task); got != l.TasksPath("auth") {
		t.Errorf("TaskFilePath() without file = %q", got)
	}

	if got := DefaultSpecsPath("/repo"); got != filepath.Join("/repo", ".kiro", "specs") {
		t.Errorf("DefaultSpecsPath() = %q", got)
	}
	if got := DefaultStatusPath("/repo"); got != filepath.Join("/repo", ".kiro", "scripts", "tasks-status.json") {
		t.Errorf("DefaultStatusPath() = %q", got)
	}
}

func TestLayout_FeatureDirs(t *testing.T) {
	tempDir := t.TempDir()
	for _, dir := range []string{"zeta", "alpha", TemplateDir} {
		if err := os.MkdirAll(filepath.Join(tempDir, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(tempDir, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLayout(tempDir, "")
	if !l.Exists() {
		t.Fatal("expected layout to exist")
	}

	dirs, err := l.FeatureDirs()
	if err != nil {
		t.Fatalf("FeatureDirs() error = %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "alpha" || dirs[1] != "zeta" {
		t.Errorf("FeatureDirs() = %v, want [alpha zeta]", dirs)
	}

	missing := NewLayout(filepath.Join(tempDir, "missing"), "")
	if missing.Exists() {
		t.Error("missing layout should not exist")
	}
	if _, err := missing.FeatureDirs(); !os.IsNotExist(err) {
		t.Errorf("FeatureDirs() on missing dir error = %v", err)
	}
}

func TestLayout_CreateFeature(t *testing.T) {
	tempDir := t.TempDir()
	l := NewLayout(tempDir, "")

	path, err := l.CreateFeature("auth")
	if err != nil {
		t.Fatalf("CreateFeature failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != defaultChecklist {
		t.Errorf("content = %q, want default checklist", content)
	}
	if tasks := ParseTasks(string(content), "auth", TasksFile); len(tasks) != 1 {
		t.Errorf("default checklist should parse to 1 task, got %d", len(tasks))
	}

	if _, err := l.CreateFeature("auth"); err == nil {
		t.Error("expected error creating existing feature")
	}

	for _, bad := range []string{"", "..", "a/b", TemplateDir} {
		if _, err := l.CreateFeature(bad); err == nil {
			t.Errorf("CreateFeature(%q) expected error", bad)
		}
	}
}

func TestLayout_CreateFeatureFromTemplate(t *testing.T) {
	tempDir := t.TempDir()
	l := NewLayout(tempDir, "")

	template := "### Setup:\n- [ ] 1.1 From template\n"
	if err := os.MkdirAll(l.FeaturePath(TemplateDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.TemplatePath(), []byte(template), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := l.CreateFeature("billing")
	if err != nil {
		t.Fatalf("CreateFeature failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != template {
		t.Errorf("content = %q, want template", content)
	}
}
