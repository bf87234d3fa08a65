// Package course describes the course layout: which chapter directories exist,
// where the upstream task and answer repositories live, and how a student's
// repository is named.
package course

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	courseerr "apyneng/internal/errors"
)

//go:embed course.yaml
var defaultManifest []byte

// Manifest is the static description of the course.
type Manifest struct {
	TasksURL           string         `yaml:"tasks_url"`
	AnswersURL         string         `yaml:"answers_url"`
	GitHubOrg          string         `yaml:"github_org"`
	StudentRepoPattern string         `yaml:"student_repo_pattern"`
	ExercisesDir       string         `yaml:"exercises_dir"`
	Chapters           map[int]string `yaml:"chapters"`
}

// Default returns the manifest embedded in the binary.
func Default() (*Manifest, error) {
	return Parse(defaultManifest)
}

// Parse decodes a YAML manifest and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode course manifest: %w", err)
	}
	if len(m.Chapters) == 0 {
		return nil, fmt.Errorf("course manifest has no chapters")
	}
	if m.StudentRepoPattern != "" {
		if _, err := regexp.Compile(m.StudentRepoPattern); err != nil {
			return nil, fmt.Errorf("invalid student_repo_pattern: %w", err)
		}
	}
	if m.ExercisesDir == "" {
		m.ExercisesDir = "exercises"
	}
	return &m, nil
}

// ChapterDirs lists the chapter directory names in lexicographic order.
func (m *Manifest) ChapterDirs() []string {
	dirs := make([]string, 0, len(m.Chapters))
	for _, dir := range m.Chapters {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// IsChapterDir reports whether the base name of dir is a known chapter.
func (m *Manifest) IsChapterDir(dir string) bool {
	base := filepath.Base(dir)
	for _, name := range m.Chapters {
		if name == base {
			return true
		}
	}
	return false
}

// IsExercisesDir reports whether dir is the directory holding all chapters.
func (m *Manifest) IsExercisesDir(dir string) bool {
	return filepath.Base(dir) == m.ExercisesDir
}

// RequireChapterDir returns a usage error listing the chapter directories
// unless dir is one of them.
func (m *Manifest) RequireChapterDir(dir, message string) error {
	if m.IsChapterDir(dir) {
		return nil
	}
	return wrongDir(message, m.ChapterDirs())
}

// RequireExercisesDir returns a usage error unless dir is the exercises
// directory.
func (m *Manifest) RequireExercisesDir(dir, message string) error {
	if m.IsExercisesDir(dir) {
		return nil
	}
	return wrongDir(message, []string{m.ExercisesDir})
}

func wrongDir(message string, allowed []string) error {
	listed := make([]string, 0, len(allowed))
	for _, name := range allowed {
		if !strings.HasPrefix(name, "task") {
			listed = append(listed, name)
		}
	}
	return &courseerr.UsageError{
		Message: fmt.Sprintf("%s:\n    %s", message, strings.Join(listed, "\n    ")),
	}
}

// ChapterID extracts the chapter number from a chapter directory such as
// 07_closure.
func ChapterID(dir string) (int, error) {
	base := filepath.Base(dir)
	prefix, _, _ := strings.Cut(base, "_")
	id, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("directory %q does not start with a chapter number", base)
	}
	return id, nil
}
