package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"apyneng/internal/config"
	"apyneng/internal/course"
	"apyneng/internal/diff"
	"apyneng/internal/gitcli"
	"apyneng/internal/hosting"
	"apyneng/internal/logging"
	"apyneng/internal/pytest"
	"apyneng/internal/report"
	"apyneng/internal/selector"
	"apyneng/internal/submit"
	"apyneng/internal/tasksrepo"
)

const (
	saveAllMessage       = "All changes saved"
	saveBeforeMessage    = "Save changes before updating tasks"
	updateTasksMessage   = "Update tasks"
	updateChaptersMsg    = "Update chapters"
	wrongChapterDirMsg   = "Tasks can only be checked from the directories"
	wrongExercisesDirMsg = "Chapters can only be updated from the directory"
)

type options struct {
	check          bool
	docs           bool
	testToken      bool
	saveAll        bool
	update         bool
	testOnly       bool
	updateChapters string
	disableVerbose bool
	debug          bool
	branch         string
	addAll         bool
	ignoreTLS      bool
	answer         bool
	configFile     string
}

type workingTree interface {
	IsClean(ctx context.Context) (bool, error)
	DiffStat(ctx context.Context) (string, error)
	SaveChanges(ctx context.Context, message string, addAll bool, branch string) error
}

type testRunner interface {
	Run(ctx context.Context, dir string, tests []string, opts pytest.Options) (*report.Report, error)
}

type upstreamRepo interface {
	Sync(ctx context.Context) error
	CopyTasks(chapterDir string, files []string) error
	CopyChapters(exercisesDir string, chapters []string) error
	Diff(gen *diff.Generator, chapterDir string, files []string) ([]*diff.FileDiff, error)
}

type answerCopier interface {
	Copy(ctx context.Context, chapterDir string, passed []string) ([]string, error)
}

type reviewSubmitter interface {
	Submit(ctx context.Context, req submit.Request) (*hosting.Commit, error)
	TestToken(ctx context.Context) (*hosting.Commit, error)
}

// app holds one invocation: parsed flags, configuration and collaborators.
// Collaborators left nil are built from the configuration by wire.
type app struct {
	opts     options
	tasksArg string
	cwd      string
	home     string
	fs       afero.Fs
	manifest *course.Manifest
	cfg      config.Config
	stdout   io.Writer
	logger   logging.Logger
	confirm  confirmFunc

	git       workingTree
	runner    testRunner
	upstream  upstreamRepo
	answers   answerCopier
	submitter func() (reviewSubmitter, error)
	docs      func(out io.Writer) error
}

// wire fills in the default collaborators.
func (a *app) wire() {
	if a.logger == nil {
		a.logger = logging.Nop()
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.confirm == nil {
		a.confirm = assumeYes
	}
	if a.git == nil {
		a.git = gitcli.New(a.cwd, a.stdout, true, logging.WithComponent(a.logger, "git"))
	}
	if a.runner == nil {
		a.runner = &pytest.Runner{
			Python: a.cfg.Python,
			Stdout: a.stdout,
			Stderr: a.stdout,
			Logger: logging.WithComponent(a.logger, "pytest"),
		}
	}
	if a.upstream == nil {
		a.upstream = &tasksrepo.Cache{
			Root:         a.cfg.CacheDir,
			TasksURL:     a.manifest.TasksURL,
			ExercisesDir: a.manifest.ExercisesDir,
			Git:          gitcli.New(a.home, a.stdout, true, logging.WithComponent(a.logger, "git")),
			Fs:           a.fs,
			Logger:       logging.WithComponent(a.logger, "tasks"),
		}
	}
	if a.answers == nil {
		a.answers = &tasksrepo.Answers{
			URL:    a.manifest.AnswersURL,
			Git:    gitcli.New(a.home, a.stdout, false, logging.WithComponent(a.logger, "git")),
			Logger: logging.WithComponent(a.logger, "answers"),
		}
	}
	if a.submitter == nil {
		a.submitter = a.newSubmitter
	}
	if a.docs == nil {
		a.docs = func(out io.Writer) error { return showDocs(out, isTTY()) }
	}
}

func (a *app) newSubmitter() (reviewSubmitter, error) {
	client, err := hosting.New(hosting.Options{
		Token:     a.cfg.Token,
		Org:       a.manifest.GitHubOrg,
		BaseURL:   a.cfg.APIBaseURL,
		IgnoreTLS: a.cfg.IgnoreTLS,
		Logger:    logging.WithComponent(a.logger, "hosting"),
	})
	if err != nil {
		return nil, err
	}
	return &submit.Submitter{
		Git:      gitcli.New(a.cwd, a.stdout, true, logging.WithComponent(a.logger, "git")),
		Hosting:  client,
		Out:      a.stdout,
		Org:      a.manifest.GitHubOrg,
		Pattern:  a.manifest.StudentRepoPattern,
		Lookback: a.cfg.Lookback,
		Logger:   logging.WithComponent(a.logger, "submit"),
	}, nil
}

// run dispatches one invocation. Flags that do not run tests return early.
func (a *app) run(ctx context.Context) error {
	a.wire()
	a.logger.Debug("dispatch in %s, tasks %q", a.cwd, a.tasksArg)
	if a.opts.docs {
		return a.docs(a.stdout)
	}
	branch := a.cfg.DefaultBranch

	if a.opts.testToken {
		sub, err := a.submitter()
		if err != nil {
			return err
		}
		commit, err := sub.TestToken(ctx)
		if err != nil {
			return err
		}
		if commit != nil {
			fmt.Fprintln(a.stdout, green("Token check passed"))
		}
		return nil
	}

	if a.opts.saveAll {
		if err := a.git.SaveChanges(ctx, saveAllMessage, true, branch); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, green("All changes in the current directory are saved on GitHub"))
		return nil
	}

	if a.opts.updateChapters != "" {
		if err := a.manifest.RequireExercisesDir(a.cwd, wrongExercisesDirMsg); err != nil {
			return err
		}
		chapters, err := selector.ExpandChapters(a.manifest.Chapters, a.opts.updateChapters)
		if err != nil {
			return err
		}
		return a.updateChapters(ctx, chapters)
	}

	if err := a.manifest.RequireChapterDir(a.cwd, wrongChapterDirMsg); err != nil {
		return err
	}
	chapter, err := course.ChapterID(a.cwd)
	if err != nil {
		return err
	}
	selected, err := selector.ExpandTasks(a.fs, a.cwd, chapter, a.tasksArg)
	if err != nil {
		return err
	}

	if a.opts.update {
		return a.updateTasks(ctx, selected)
	}

	passed, err := a.runTests(ctx, selected.Tests)
	if err != nil {
		return err
	}

	if a.opts.check && (len(passed) > 0 || len(selected.TasksWithoutTests) > 0) {
		sub, err := a.submitter()
		if err != nil {
			return err
		}
		toSubmit := append(append([]string{}, passed...), selected.TasksWithoutTests...)
		if _, err := sub.Submit(ctx, submit.Request{
			Passed: toSubmit,
			AddAll: a.opts.addAll,
			Branch: branch,
		}); err != nil {
			return err
		}
	}

	if a.opts.answer && len(passed) > 0 {
		written, err := a.answers.Copy(ctx, a.cwd, passed)
		if err != nil {
			return err
		}
		if len(written) > 0 {
			fmt.Fprintln(a.stdout, green("\nAnswers to the tasks that passed the tests are copied to answer_task_x.py files\n"))
		}
	}

	if a.opts.addAll {
		return a.git.SaveChanges(ctx, saveAllMessage, true, branch)
	}
	return nil
}

// runTests runs the selected test files and returns the ones whose tests all
// passed. With no test files there is nothing to run.
func (a *app) runTests(ctx context.Context, tests []string) ([]string, error) {
	if len(tests) == 0 {
		fmt.Fprintln(a.stdout, yellow("No test files for the selected tasks"))
		return nil, nil
	}
	rep, err := a.runner.Run(ctx, a.cwd, tests, pytest.Options{
		Quiet: a.opts.disableVerbose,
		Check: a.opts.check,
	})
	if err != nil {
		return nil, err
	}
	return report.PassedTasks(rep), nil
}

func workingDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return dir, nil
}
