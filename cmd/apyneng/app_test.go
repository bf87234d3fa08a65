package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apyneng/internal/diff"
	"apyneng/internal/hosting"
	"apyneng/internal/pytest"
	"apyneng/internal/report"
	"apyneng/internal/submit"
)

const (
	exercisesDir = "/course/exercises"
	chapterDir   = "/course/exercises/07_closure"
)

type saveCall struct {
	message string
	addAll  bool
	branch  string
}

type fakeTree struct {
	clean []bool
	saves []saveCall
}

func (f *fakeTree) IsClean(context.Context) (bool, error) {
	if len(f.clean) == 0 {
		return true, nil
	}
	next := f.clean[0]
	f.clean = f.clean[1:]
	return next, nil
}

func (f *fakeTree) DiffStat(context.Context) (string, error) {
	return " task_7_1.py | 2 +-", nil
}

func (f *fakeTree) SaveChanges(_ context.Context, message string, addAll bool, branch string) error {
	f.saves = append(f.saves, saveCall{message, addAll, branch})
	return nil
}

type fakeRunner struct {
	tests []string
	opts  pytest.Options
	rep   *report.Report
	calls int
}

func (f *fakeRunner) Run(_ context.Context, _ string, tests []string, opts pytest.Options) (*report.Report, error) {
	f.calls++
	f.tests, f.opts = tests, opts
	return f.rep, nil
}

type fakeUpstream struct {
	synced   int
	copied   []string
	chapters []string
}

func (f *fakeUpstream) Sync(context.Context) error {
	f.synced++
	return nil
}

func (f *fakeUpstream) CopyTasks(_ string, files []string) error {
	f.copied = files
	return nil
}

func (f *fakeUpstream) CopyChapters(_ string, chapters []string) error {
	f.chapters = chapters
	return nil
}

func (f *fakeUpstream) Diff(gen *diff.Generator, _ string, files []string) ([]*diff.FileDiff, error) {
	return []*diff.FileDiff{gen.Compare(files[0], "old\n", "new\n")}, nil
}

type fakeAnswers struct {
	passed []string
}

func (f *fakeAnswers) Copy(_ context.Context, _ string, passed []string) ([]string, error) {
	f.passed = passed
	return []string{"answer_task_7_1.py"}, nil
}

type fakeSubmitter struct {
	req     *submit.Request
	tokened bool
}

func (f *fakeSubmitter) Submit(_ context.Context, req submit.Request) (*hosting.Commit, error) {
	f.req = &req
	return &hosting.Commit{SHA: "abc"}, nil
}

func (f *fakeSubmitter) TestToken(context.Context) (*hosting.Commit, error) {
	f.tokened = true
	return &hosting.Commit{SHA: "abc"}, nil
}

type harness struct {
	fs        afero.Fs
	tree      *fakeTree
	runner    *fakeRunner
	upstream  *fakeUpstream
	answers   *fakeAnswers
	submitter *fakeSubmitter
	// realSubmitter keeps the hosting-backed submitter, to exercise token checks.
	realSubmitter bool
	// interactive routes confirmations through promptui reading stdin.
	interactive bool
	stdin       string
	stdout      bytes.Buffer
	stderr      bytes.Buffer
}

func newHarness(t *testing.T, files ...string) *harness {
	t.Helper()
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("APYNENG_TOKEN", "")
	t.Setenv("APYNENG_LOG_FILE", "")
	t.Setenv("APYNENG_DEFAULT_BRANCH", "")
	fs := afero.NewMemMapFs()
	for _, name := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(chapterDir, name), []byte("# "+name+"\n"), 0o644))
	}
	return &harness{
		fs:        fs,
		tree:      &fakeTree{},
		runner:    &fakeRunner{rep: &report.Report{}},
		upstream:  &fakeUpstream{},
		answers:   &fakeAnswers{},
		submitter: &fakeSubmitter{},
	}
}

func (h *harness) run(t *testing.T, cwd string, args ...string) int {
	t.Helper()
	home := t.TempDir()
	env := environment{
		stdin:       strings.NewReader(h.stdin),
		stdout:      &h.stdout,
		stderr:      &h.stderr,
		cwd:         func() (string, error) { return cwd, nil },
		home:        func() (string, error) { return home, nil },
		interactive: h.interactive,
		prepare: func(a *app) {
			a.fs = h.fs
			a.git = h.tree
			a.runner = h.runner
			a.upstream = h.upstream
			a.answers = h.answers
			if !h.realSubmitter {
				a.submitter = func() (reviewSubmitter, error) { return h.submitter, nil }
			}
		},
	}
	return execute(context.Background(), args, env)
}

func passing(nodeIDs ...string) *report.Report {
	rep := &report.Report{Summary: report.Summary{Total: len(nodeIDs)}}
	for _, id := range nodeIDs {
		rep.Tests = append(rep.Tests, report.TestRun{NodeID: id, Outcome: "passed"})
	}
	return rep
}

func TestRunsAllTestsByDefault(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py", "task_7_2.py", "test_task_7_2.py")

	code := h.run(t, chapterDir)
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []string{"test_task_7_1.py", "test_task_7_2.py"}, h.runner.tests)
	assert.Equal(t, pytest.Options{}, h.runner.opts)
	assert.Nil(t, h.submitter.req)
	assert.Empty(t, h.tree.saves)
}

func TestCheckSubmitsPassedAndUntestedTasks(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py", "task_7_2.py", "task_7_3.py", "test_task_7_3.py")
	h.runner.rep = &report.Report{
		Summary: report.Summary{Total: 2},
		Tests: []report.TestRun{
			{NodeID: "test_task_7_1.py::test_ok", Outcome: "passed"},
			{NodeID: "test_task_7_3.py::test_bad", Outcome: "failed"},
		},
	}

	code := h.run(t, chapterDir, "1-3", "-c", "-d")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, pytest.Options{Quiet: true, Check: true}, h.runner.opts)
	require.NotNil(t, h.submitter.req)
	assert.Equal(t, submit.Request{
		Passed: []string{"test_task_7_1.py", "task_7_2.py"},
		Branch: "main",
	}, *h.submitter.req)
}

func TestCheckWithoutTokenFails(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.runner.rep = passing("test_task_7_1.py::test_ok")
	h.realSubmitter = true

	code := h.run(t, chapterDir, "-c")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, h.stderr.String(), "CourseError: A GitHub token is required")
}

func TestCheckWithoutPassedTasksSubmitsNothing(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.runner.rep = &report.Report{
		Summary: report.Summary{Total: 1},
		Tests:   []report.TestRun{{NodeID: "test_task_7_1.py::test_ok", Outcome: "failed"}},
	}
	h.realSubmitter = true

	code := h.run(t, chapterDir, "-c")
	assert.Equal(t, exitOK, code, h.stderr.String())
}

func TestDebugPrintsErrorChain(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.runner.rep = passing("test_task_7_1.py::test_ok")
	h.realSubmitter = true

	code := h.run(t, chapterDir, "-c", "--debug")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, h.stderr.String(), "CourseError: A GitHub token is required")
}

func TestInvalidSelectorIsUsageError(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")

	code := h.run(t, chapterDir, "2ab")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, h.stderr.String(), "Error: unsupported format 2ab")
	assert.Zero(t, h.runner.calls)
}

func TestWrongDirectoryIsUsageError(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, "/home/student/notes")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, h.stderr.String(), "Tasks can only be checked from the directories")
	assert.Contains(t, h.stderr.String(), "07_closure")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, chapterDir, "--no-such-flag")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, h.stderr.String(), "Error: unknown flag")
}

func TestSelectedTasksWithoutTestsSkipPytest(t *testing.T) {
	h := newHarness(t, "task_7_5.py")

	code := h.run(t, chapterDir, "5")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Zero(t, h.runner.calls)
	assert.Contains(t, h.stdout.String(), "No test files for the selected tasks")
}

func TestSaveAll(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, chapterDir, "--save-all", "-b", "dev")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []saveCall{{saveAllMessage, true, "dev"}}, h.tree.saves)
	assert.Zero(t, h.runner.calls)
}

func TestAllSavesAfterTests(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")

	code := h.run(t, chapterDir, "--all")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, 1, h.runner.calls)
	assert.Equal(t, []saveCall{{saveAllMessage, true, "main"}}, h.tree.saves)
}

func TestTestToken(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, "/anywhere", "--test-token")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.True(t, h.submitter.tokened)
	assert.Contains(t, h.stdout.String(), "Token check passed")
}

func TestAnswerCopiesPassedTasks(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.runner.rep = passing("test_task_7_1.py::test_ok")

	code := h.run(t, chapterDir, "-a")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []string{"test_task_7_1.py"}, h.answers.passed)
	assert.Contains(t, h.stdout.String(), "answer_task_x.py")
}

func TestUpdateTestsOnly(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py", "task_7_2.py")
	h.tree.clean = []bool{true, false}

	code := h.run(t, chapterDir, "--update", "--test-only")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, 1, h.upstream.synced)
	assert.Equal(t, []string{"test_task_7_1.py"}, h.upstream.copied)
	assert.Equal(t, []saveCall{{updateTasksMessage, true, "main"}}, h.tree.saves)
	assert.Contains(t, h.stdout.String(), "These files were updated:")
	assert.Contains(t, h.stdout.String(), "Tests are updated")
	assert.Zero(t, h.runner.calls)
}

func TestUpdateSavesDirtyTreeFirst(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.tree.clean = []bool{false, true}

	code := h.run(t, chapterDir, "1", "--update")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []string{"test_task_7_1.py", "task_7_1.py"}, h.upstream.copied)
	assert.Equal(t, []saveCall{{saveBeforeMessage, true, "main"}}, h.tree.saves)
	assert.Contains(t, h.stdout.String(), "already up to date")
}

func TestDeclinedSavePromptReadsEnvironmentStreams(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	h.tree.clean = []bool{false, true}
	h.interactive = true
	h.stdin = "n\n"

	code := h.run(t, chapterDir, "1", "--update")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Empty(t, h.tree.saves)
	assert.Contains(t, h.stdout.String(), "Save them")
	assert.Equal(t, []string{"test_task_7_1.py", "task_7_1.py"}, h.upstream.copied)
}

func TestLogFileReceivesJSONRecords(t *testing.T) {
	h := newHarness(t, "task_7_1.py", "test_task_7_1.py")
	logFile := filepath.Join(t.TempDir(), "apyneng.log")
	t.Setenv("APYNENG_LOG_FILE", logFile)

	code := h.run(t, chapterDir, "1")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.NotContains(t, h.stderr.String(), "dispatch in")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"DEBUG"`)
	assert.Contains(t, string(data), `"msg":"dispatch in /course/exercises/07_closure, tasks \"1\""`)

	h.stderr.Reset()
	code = h.run(t, chapterDir, "1", "--debug")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Contains(t, h.stderr.String(), "dispatch in")
}

func TestConfigFlagReadsExplicitFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "course.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_branch: develop\n"), 0o600))

	code := h.run(t, chapterDir, "--save-all", "--config", path)
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []saveCall{{saveAllMessage, true, "develop"}}, h.tree.saves)

	code = h.run(t, chapterDir, "--save-all", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitFailure, code)
}

func TestUpdateChapters(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, exercisesDir, "--update-chapters", "7-8")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Equal(t, []string{"07_closure", "08_decorators"}, h.upstream.chapters)
	assert.Contains(t, h.stdout.String(), "All chapters are already up to date")
}

func TestUpdateChaptersOutsideExercises(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, chapterDir, "--update-chapters", "7")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, h.stderr.String(), "Chapters can only be updated from the directory")
	assert.Nil(t, h.upstream.chapters)
}

func TestInvalidChapterSelector(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, exercisesDir, "--update-chapters", "x")
	assert.Equal(t, exitUsage, code)
}

func TestDocsRenderWithoutTerminal(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, "/anywhere", "--docs")
	require.Equal(t, exitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "apyneng")
	assert.Contains(t, h.stdout.String(), "GITHUB_TOKEN")
}

func TestReportError(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, exitOK, reportError(&out, nil, false))
	assert.Empty(t, out.String())

	out.Reset()
	assert.Equal(t, exitFailure, reportError(&out, errors.New("boom"), false))
	assert.Contains(t, out.String(), "Error: boom")

	out.Reset()
	assert.Equal(t, 3, reportError(&out, &ExitCodeError{Code: 3, Err: errors.New("custom")}, false))
	assert.Contains(t, out.String(), "custom")
}
