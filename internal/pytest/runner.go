// Package pytest runs the course test suite through the Python interpreter and
// collects the pytest-json-report document of the run.
package pytest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	courseerr "apyneng/internal/errors"
	"apyneng/internal/logging"
	"apyneng/internal/report"
)

// Options selects pytest output verbosity.
type Options struct {
	// Quiet shortens tracebacks (--tb=short) instead of verbose diffs.
	Quiet bool
	// Check is set when tasks are being submitted; tracebacks are suppressed.
	Check bool
}

// Args builds the interpreter arguments for running tests and writing the
// JSON report to reportPath. Check mode wins over Quiet.
func Args(tests []string, reportPath string, opts Options) []string {
	args := []string{"-m", "pytest"}
	args = append(args, tests...)
	args = append(args,
		"--json-report",
		"--json-report-file="+reportPath,
		"--disable-warnings",
	)
	switch {
	case opts.Check:
		args = append(args, "--tb=no")
	case opts.Quiet:
		args = append(args, "--tb=short")
	default:
		args = append(args, "-vv", "--diff-width=120")
	}
	return args
}

// Runner invokes pytest with an explicit working directory.
type Runner struct {
	Python string
	Stdout io.Writer
	Stderr io.Writer
	Logger logging.Logger
	// TempDir holds the report file; os.TempDir() when empty.
	TempDir string
}

// Run executes the tests in dir and returns the parsed report. Failing tests
// are not an error; a run that produced no report is.
func (r *Runner) Run(ctx context.Context, dir string, tests []string, opts Options) (*report.Report, error) {
	logger := logging.OrNop(r.Logger)

	tmp, err := os.MkdirTemp(r.TempDir, "apyneng-report-")
	if err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	reportPath := filepath.Join(tmp, "report.json")

	python := r.Python
	if python == "" {
		python = "python3"
	}
	cmd := exec.CommandContext(ctx, python, Args(tests, reportPath, opts)...)
	cmd.Dir = dir
	cmd.Stdout = orDiscard(r.Stdout)
	cmd.Stderr = orDiscard(r.Stderr)

	logger.Debug("running %s %v in %s", python, cmd.Args[1:], dir)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, courseerr.WrapCourseError(err, fmt.Sprintf("Could not start %s to run the tests", python))
		}
		logger.Debug("pytest exited with %d", exitErr.ExitCode())
	}

	rep, err := report.LoadFile(reportPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, courseerr.WrapCourseError(err,
				"pytest did not produce a JSON report. Install pytest and pytest-json-report")
		}
		return nil, err
	}
	return rep, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
