// Package submit turns a set of passed tasks into a commit on the student's
// repository and a review request comment on that commit.
package submit

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"apyneng/internal/gitcli"
	"apyneng/internal/hosting"
	"apyneng/internal/logging"
)

// TokenCheckMessage is the comment posted by TestToken.
const TokenCheckMessage = "Token check passed"

var taskFileRe = regexp.MustCompile(`.*(task_\d+_\w+.py)`)

// Git is the subset of git operations a submission needs.
type Git interface {
	Add(ctx context.Context, paths ...string) (gitcli.Result, error)
	AddAll(ctx context.Context) (gitcli.Result, error)
	SaveChanges(ctx context.Context, message string, addAll bool, branch string) error
	Remotes(ctx context.Context) (string, error)
}

// Commenter posts a comment on the newest commit of a repository.
type Commenter interface {
	CommentLastCommit(ctx context.Context, repo, message string, lookback time.Duration) (*hosting.Commit, error)
}

// Submitter sends passed tasks for review.
type Submitter struct {
	Git      Git
	Hosting  Commenter
	Out      io.Writer
	Org      string
	Pattern  string
	Lookback time.Duration
	Logger   logging.Logger
}

// Request describes one submission.
type Request struct {
	// Passed holds test or task file names whose tests all passed.
	Passed []string
	// AddAll stages every change in the chapter, not only the task files.
	AddAll bool
	Branch string
}

// TaskFiles normalizes passed entries such as test_task_7_1.py to the task
// file names task_7_1.py.
func TaskFiles(passed []string) []string {
	out := make([]string, 0, len(passed))
	for _, name := range passed {
		out = append(out, taskFileRe.ReplaceAllString(name, "$1"))
	}
	return out
}

// CommitMessage lists the sorted task numbers, e.g. "Tasks done: 7_1 7_2a".
func CommitMessage(tasks []string) string {
	nums := make([]string, 0, len(tasks))
	for _, task := range tasks {
		num := strings.ReplaceAll(task, "task_", "")
		nums = append(nums, strings.ReplaceAll(num, ".py", ""))
	}
	sort.Strings(nums)
	return "Tasks done: " + strings.Join(nums, " ")
}

// Submit commits and pushes the passed tasks, then comments on the pushed
// commit. It returns nil when there was no recent commit to comment on.
func (s *Submitter) Submit(ctx context.Context, req Request) (*hosting.Commit, error) {
	out := s.out()
	if len(req.Passed) == 0 {
		fmt.Fprintln(out, yellow("No tasks passed the tests, nothing to submit"))
		return nil, nil
	}

	tasks := TaskFiles(req.Passed)
	message := CommitMessage(tasks)
	if err := s.stage(ctx, tasks); err != nil {
		return nil, err
	}
	if err := s.Git.SaveChanges(ctx, message, req.AddAll, req.Branch); err != nil {
		return nil, err
	}

	repo, commit, err := s.comment(ctx, message)
	if err != nil || commit == nil {
		return nil, err
	}
	fmt.Fprintln(out, green(fmt.Sprintf(
		"The tasks were submitted for review. The comment is at %s", hosting.CommitURL(s.Org, repo, commit.SHA))))
	fmt.Fprintln(out, hint())
	return commit, nil
}

// TestToken checks the token by posting a comment on the latest commit.
func (s *Submitter) TestToken(ctx context.Context) (*hosting.Commit, error) {
	repo, commit, err := s.comment(ctx, TokenCheckMessage)
	if err != nil || commit == nil {
		return nil, err
	}
	fmt.Fprintln(s.out(), green(fmt.Sprintf(
		"The comment is at %s", hosting.CommitURL(s.Org, repo, commit.SHA))))
	return commit, nil
}

// stage adds task files. Chapters with templates (20, 21) add the templates
// directory and chapter 25 adds everything.
func (s *Submitter) stage(ctx context.Context, tasks []string) error {
	for _, task := range tasks {
		if _, err := s.Git.Add(ctx, task); err != nil {
			return err
		}
		var err error
		switch {
		case strings.Contains(task, "20") || strings.Contains(task, "21"):
			_, err = s.Git.Add(ctx, "templates")
		case strings.Contains(task, "25"):
			_, err = s.Git.AddAll(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Submitter) comment(ctx context.Context, message string) (string, *hosting.Commit, error) {
	remotes, err := s.Git.Remotes(ctx)
	if err != nil {
		return "", nil, err
	}
	repo, err := hosting.RepoFromRemotes(remotes, s.Pattern)
	if err != nil {
		return "", nil, err
	}
	lookback := s.Lookback
	if lookback <= 0 {
		lookback = hosting.DefaultLookback
	}
	commit, err := s.Hosting.CommentLastCommit(ctx, repo, message, lookback)
	if err != nil {
		return "", nil, err
	}
	if commit == nil {
		fmt.Fprintln(s.out(), yellow(fmt.Sprintf(
			"No commits found in %s during the last %d days", repo, int(lookback.Hours()/24))))
	}
	logging.OrNop(s.Logger).Debug("comment %q on %s", message, repo)
	return repo, commit, nil
}

func (s *Submitter) out() io.Writer {
	if s.Out == nil {
		return io.Discard
	}
	return s.Out
}
