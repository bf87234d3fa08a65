// Package gitcli runs git as an opaque external command. Every invocation has
// an explicit working directory; the process working directory never changes.
package gitcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	courseerr "apyneng/internal/errors"
	"apyneng/internal/logging"
)

// Result is the outcome of one git invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether git exited with status zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Client runs git commands in Dir.
type Client struct {
	Dir     string
	Binary  string
	Logger  logging.Logger
	Out     io.Writer
	Verbose bool
}

// New returns a client for dir that echoes commands and their output to out
// when verbose is set.
func New(dir string, out io.Writer, verbose bool, logger logging.Logger) *Client {
	if out == nil {
		out = io.Discard
	}
	return &Client{
		Dir:     dir,
		Binary:  "git",
		Logger:  logging.OrNop(logger),
		Out:     out,
		Verbose: verbose,
	}
}

// In returns a copy of the client that runs in dir.
func (c *Client) In(dir string) *Client {
	clone := *c
	clone.Dir = dir
	return &clone
}

// Run executes git with args. A non-zero exit is reported in the Result, not
// as an error; err is set only when git could not be started.
func (c *Client) Run(ctx context.Context, args ...string) (Result, error) {
	binary := c.Binary
	if binary == "" {
		binary = "git"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := Result{Args: append([]string(nil), args...)}
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return result, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}

	c.logger().Debug("git %s in %s exited with %d", strings.Join(args, " "), c.Dir, result.ExitCode)
	c.echo(result)
	return result, nil
}

func (c *Client) echo(result Result) {
	if !c.Verbose || c.Out == nil {
		return
	}
	fmt.Fprintf(c.Out, "%s git %s\n", strings.Repeat("#", 20), strings.Join(result.Args, " "))
	if result.Stdout != "" {
		fmt.Fprintln(c.Out, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintln(c.Out, result.Stderr)
	}
}

func (c *Client) logger() logging.Logger {
	return logging.OrNop(c.Logger)
}

// output runs a read-only command quietly and returns stdout.
func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	quiet := *c
	quiet.Verbose = false
	result, err := quiet.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", fmt.Errorf("git %s: exit status %d: %s", strings.Join(args, " "), result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

// Status returns the short porcelain status of the working tree.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.output(ctx, "status", "--porcelain")
}

// IsClean reports whether the working tree has no changes.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(status) == "", nil
}

// Remotes returns the output of git remote -v.
func (c *Client) Remotes(ctx context.Context) (string, error) {
	return c.output(ctx, "remote", "-v")
}

// DiffStat returns git diff --stat for the working tree.
func (c *Client) DiffStat(ctx context.Context) (string, error) {
	return c.output(ctx, "diff", "--stat")
}

// Add stages paths.
func (c *Client) Add(ctx context.Context, paths ...string) (Result, error) {
	return c.Run(ctx, append([]string{"add", "--"}, paths...)...)
}

// AddAll stages every change under Dir.
func (c *Client) AddAll(ctx context.Context) (Result, error) {
	return c.Run(ctx, "add", ".")
}

// Commit records staged changes with message.
func (c *Client) Commit(ctx context.Context, message string) (Result, error) {
	return c.Run(ctx, "commit", "-m", message)
}

// Push pushes branch to origin.
func (c *Client) Push(ctx context.Context, branch string) (Result, error) {
	return c.Run(ctx, "push", "origin", branch)
}

// Pull updates the current branch from its upstream.
func (c *Client) Pull(ctx context.Context) (Result, error) {
	return c.Run(ctx, "pull")
}

// Clone clones url into dst. Failures are classified into course errors with
// a dedicated message when the host could not be resolved.
func (c *Client) Clone(ctx context.Context, url, dst string) error {
	quiet := *c
	quiet.Verbose = false
	result, err := quiet.Run(ctx, "clone", url, dst)
	if err != nil {
		return courseerr.WrapCourseError(err, "Could not run git clone. Is git installed?")
	}
	if !result.OK() {
		return courseerr.CloneFailure(result.Stderr)
	}
	return nil
}

// SaveChanges commits and pushes the working tree. A clean tree is left
// alone. Commit and push exit codes are reported but not treated as failures:
// a non-zero commit mostly means there was nothing to commit.
func (c *Client) SaveChanges(ctx context.Context, message string, addAll bool, branch string) error {
	clean, err := c.IsClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		c.logger().Debug("working tree in %s is clean, nothing to save", c.Dir)
		return nil
	}
	if addAll {
		if _, err := c.AddAll(ctx); err != nil {
			return err
		}
	}
	if _, err := c.Commit(ctx, message); err != nil {
		return err
	}
	result, err := c.Push(ctx, branch)
	if err != nil {
		return err
	}
	if !result.OK() {
		c.logger().Warn("git push origin %s exited with %d: %s", branch, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
