// Package hosting talks to the GitHub API: it finds the student's repository,
// the latest commit within a lookback window and attaches review comments.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	courseerr "apyneng/internal/errors"
	"apyneng/internal/httpclient"
	"apyneng/internal/logging"
)

// DefaultLookback is how far back CommentLastCommit searches for commits.
const DefaultLookback = 60 * 24 * time.Hour

// Commit identifies a commit that received a comment.
type Commit struct {
	SHA string
	URL string
}

// Options configures a Client.
type Options struct {
	Token      string
	Org        string
	BaseURL    string
	IgnoreTLS  bool
	HTTPClient *http.Client
	Logger     logging.Logger
	Now        func() time.Time
}

// Client is a thin wrapper over the GitHub REST API scoped to one organisation.
type Client struct {
	gh     *github.Client
	org    string
	logger logging.Logger
	now    func() time.Time
}

// New builds an authenticated client. It fails with ErrMissingToken before any
// network traffic when no token is configured.
func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, courseerr.ErrMissingToken
	}
	if strings.TrimSpace(opts.Org) == "" {
		return nil, fmt.Errorf("github organisation is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.Options{
			IgnoreTLS: opts.IgnoreTLS,
			Logger:    logging.WithComponent(opts.Logger, "http"),
		})
	}
	gh := github.NewClient(httpClient).WithAuthToken(token)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse api base url: %w", err)
		}
		gh.BaseURL = parsed
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		gh:     gh,
		org:    opts.Org,
		logger: logging.OrNop(opts.Logger),
		now:    now,
	}, nil
}

// CommentLastCommit posts message on the newest commit of repo made within
// lookback. It returns (nil, nil) when there is no such commit.
func (c *Client) CommentLastCommit(ctx context.Context, repo, message string, lookback time.Duration) (*Commit, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if _, _, err := c.gh.Repositories.Get(ctx, c.org, repo); err != nil {
		var apiErr *github.ErrorResponse
		if errors.As(err, &apiErr) {
			return nil, courseerr.WrapCourseError(err, courseerr.ErrAuthFailed.Message)
		}
		return nil, fmt.Errorf("fetch repository %s/%s: %w", c.org, repo, err)
	}

	since := c.now().Add(-lookback)
	commits, _, err := c.gh.Repositories.ListCommits(ctx, c.org, repo, &github.CommitsListOptions{
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("list commits of %s/%s: %w", c.org, repo, err)
	}
	if len(commits) == 0 {
		days := int(lookback.Hours() / 24)
		c.logger.Info("no commits in %s/%s during the last %d days", c.org, repo, days)
		return nil, nil
	}

	last := commits[0]
	sha := last.GetSHA()
	if _, _, err := c.gh.Repositories.CreateComment(ctx, c.org, repo, sha, &github.RepositoryComment{
		Body: github.String(message),
	}); err != nil {
		return nil, fmt.Errorf("comment on commit %s: %w", sha, err)
	}
	c.logger.Debug("commented on %s/%s@%s", c.org, repo, sha)

	return &Commit{SHA: sha, URL: CommitURL(c.org, repo, sha)}, nil
}

// CommitURL is the web page of a commit.
func CommitURL(org, repo, sha string) string {
	return fmt.Sprintf("https://github.com/%s/%s/commit/%s", org, repo, sha)
}

// RepoFromRemotes finds the student repository name in git remote -v output.
func RepoFromRemotes(remotes, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("compile student repository pattern: %w", err)
	}
	if repo := re.FindString(remotes); repo != "" {
		return repo, nil
	}
	return "", courseerr.NewCourseError(
		"Repository %s not found. apyneng must be run inside the repository prepared for the course.",
		pattern,
	)
}
