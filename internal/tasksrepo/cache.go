// Package tasksrepo keeps a local copy of the upstream task repository and
// copies tasks, tests, whole chapters and answers out of it.
package tasksrepo

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"apyneng/internal/diff"
	courseerr "apyneng/internal/errors"
	"apyneng/internal/gitcli"
	"apyneng/internal/logging"
)

// Cache is the clone of the upstream task repository, kept between runs.
type Cache struct {
	Root         string
	TasksURL     string
	ExercisesDir string
	Git          *gitcli.Client
	Fs           afero.Fs
	Logger       logging.Logger
}

func (c *Cache) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c *Cache) logger() logging.Logger {
	return logging.OrNop(c.Logger)
}

// Sync clones the task repository on first use and pulls it afterwards.
func (c *Cache) Sync(ctx context.Context) error {
	if c.Git == nil {
		return fmt.Errorf("tasks cache has no git client")
	}
	ok, err := afero.Exists(c.fs(), filepath.Join(c.Root, ".git"))
	if err != nil {
		return err
	}
	if !ok {
		c.logger().Debug("cloning %s into %s", c.TasksURL, c.Root)
		return c.Git.Clone(ctx, c.TasksURL, c.Root)
	}

	result, err := c.Git.In(c.Root).Pull(ctx)
	if err != nil {
		return courseerr.WrapCourseError(err, "Could not update the task repository")
	}
	if !result.OK() {
		c.logger().Warn("git pull in %s exited with %d: %s", c.Root, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Upstream returns the cached copy of a chapter directory.
func (c *Cache) Upstream(chapter string) string {
	exercises := c.ExercisesDir
	if exercises == "" {
		exercises = "exercises"
	}
	return filepath.Join(c.Root, exercises, chapter)
}

// CopyTasks overwrites files in chapterDir with their upstream versions.
func (c *Cache) CopyTasks(chapterDir string, files []string) error {
	src := c.Upstream(filepath.Base(chapterDir))
	for _, name := range files {
		if err := copyFile(c.fs(), filepath.Join(src, name), filepath.Join(chapterDir, name)); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}
	return nil
}

// CopyChapters replaces each chapter directory under exercisesDir with the
// upstream one. Nothing is removed unless every chapter exists upstream.
func (c *Cache) CopyChapters(exercisesDir string, chapters []string) error {
	fsys := c.fs()
	for _, chapter := range chapters {
		ok, err := afero.DirExists(fsys, c.Upstream(chapter))
		if err != nil {
			return fmt.Errorf("stat upstream %s: %w", chapter, err)
		}
		if !ok {
			return courseerr.NewCourseError("Chapter %s is not in the task repository, nothing was updated", chapter)
		}
	}
	for _, chapter := range chapters {
		dst := filepath.Join(exercisesDir, chapter)
		if err := fsys.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
		if err := copyTree(fsys, c.Upstream(chapter), dst); err != nil {
			return fmt.Errorf("copy chapter %s: %w", chapter, err)
		}
	}
	return nil
}

// Diff compares the student's copies of files in chapterDir with upstream and
// returns the files that would change. A file missing locally counts as new.
func (c *Cache) Diff(gen *diff.Generator, chapterDir string, files []string) ([]*diff.FileDiff, error) {
	fsys := c.fs()
	src := c.Upstream(filepath.Base(chapterDir))
	var changed []*diff.FileDiff
	for _, name := range files {
		upstream, err := afero.ReadFile(fsys, filepath.Join(src, name))
		if err != nil {
			return nil, fmt.Errorf("read upstream %s: %w", name, err)
		}
		local, err := readOptional(fsys, filepath.Join(chapterDir, name))
		if err != nil {
			return nil, err
		}
		if d := gen.Compare(name, local, string(upstream)); d.Changed() {
			changed = append(changed, d)
		}
	}
	return changed, nil
}

func readOptional(fsys afero.Fs, path string) (string, error) {
	ok, err := afero.Exists(fsys, path)
	if err != nil || !ok {
		return "", err
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
