package tasksrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"

	"apyneng/internal/gitcli"
	"apyneng/internal/logging"
)

var taskNameRe = regexp.MustCompile(`task_\w+\.py`)

// Answers fetches reference solutions for tasks that passed their tests.
type Answers struct {
	URL    string
	Git    *gitcli.Client
	Logger logging.Logger
	// TempDir is where the answers repository is cloned; os.TempDir() when empty.
	TempDir string
}

// AnswerFile maps a passed test or task file to the answer file name.
func AnswerFile(passed string) (task, answer string, ok bool) {
	task = taskNameRe.FindString(filepath.Base(passed))
	if task == "" {
		return "", "", false
	}
	return task, "answer_" + task, true
}

// Copy clones the answers repository and writes answer_task_x.py next to each
// passed task in chapterDir. Existing answer files are left untouched. It
// returns the answer files written.
func (a *Answers) Copy(ctx context.Context, chapterDir string, passed []string) ([]string, error) {
	if a.Git == nil {
		return nil, fmt.Errorf("answers have no git client")
	}
	logger := logging.OrNop(a.Logger)

	tmp, err := os.MkdirTemp(a.TempDir, "advpyneng-answers-")
	if err != nil {
		return nil, fmt.Errorf("create answers dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	clone := filepath.Join(tmp, "answers-repo")
	if err := a.Git.Clone(ctx, a.URL, clone); err != nil {
		return nil, err
	}

	fsys := afero.NewOsFs()
	src := filepath.Join(clone, "answers", filepath.Base(chapterDir))
	var written []string
	for _, entry := range passed {
		task, answer, ok := AnswerFile(entry)
		if !ok {
			logger.Warn("cannot derive a task name from %s", entry)
			continue
		}
		dst := filepath.Join(chapterDir, answer)
		if present, err := afero.Exists(fsys, dst); err != nil {
			return written, err
		} else if present {
			continue
		}
		from := filepath.Join(src, task)
		if present, err := afero.Exists(fsys, from); err != nil {
			return written, err
		} else if !present {
			logger.Warn("no answer published for %s", task)
			continue
		}
		if err := copyFile(fsys, from, dst); err != nil {
			return written, fmt.Errorf("copy answer %s: %w", task, err)
		}
		written = append(written, answer)
	}
	return written, nil
}
