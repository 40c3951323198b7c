// Package github adapts the GitHub REST API, through go-github, to the
// migration engine's destination interface.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
)

// API configuration constants.
const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	MaxPages = 1000
)

// Client talks to one GitHub repository.
type Client struct {
	Owner string
	Repo  string

	api *gh.Client
}

// NewClient creates a client for owner/repo. An empty baseURL targets
// github.com; anything else is treated as a GitHub Enterprise instance.
func NewClient(token, owner, repo, baseURL string) (*Client, error) {
	return NewClientWithHTTPClient(&http.Client{Timeout: DefaultTimeout}, token, owner, repo, baseURL)
}

// NewClientWithHTTPClient is NewClient with a caller-supplied HTTP client.
func NewClientWithHTTPClient(httpClient *http.Client, token, owner, repo, baseURL string) (*Client, error) {
	api := gh.NewClient(httpClient)
	if token != "" {
		api = api.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		api, err = api.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub URL %q: %w", baseURL, err)
		}
	}
	return &Client{Owner: owner, Repo: repo, api: api}, nil
}

// APIError is an error response from GitHub.
type APIError struct {
	StatusCode  int
	Message     string
	RateLimited bool
	err         error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "github: " + e.Message
	}
	return fmt.Sprintf("github API error: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.err }

// Forbidden reports whether the request was refused for authorization or
// rate-limit reasons.
func (e *APIError) Forbidden() bool {
	return e.RateLimited || e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// ValidationError is a 422 response rejecting a single item.
type ValidationError struct {
	Message  string
	Messages []string
	err      error
}

func (e *ValidationError) Error() string {
	return "github validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.err }

// ValidationMessages returns the per-field messages reported by GitHub.
func (e *ValidationError) ValidationMessages() []string { return e.Messages }

// wrapError converts go-github errors into APIError or ValidationError.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &APIError{StatusCode: statusOf(rateErr.Response), Message: rateErr.Message, RateLimited: true, err: err}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &APIError{StatusCode: statusOf(abuseErr.Response), Message: abuseErr.Message, RateLimited: true, err: err}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) {
		status := statusOf(respErr.Response)
		if status == http.StatusUnprocessableEntity {
			return &ValidationError{Message: respErr.Message, Messages: fieldMessages(respErr.Errors), err: err}
		}
		return &APIError{StatusCode: status, Message: respErr.Message, err: err}
	}
	return err
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func fieldMessages(errs []gh.Error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Message != "" {
			out = append(out, e.Message)
			continue
		}
		parts := []string{e.Resource, e.Field, e.Code}
		out = append(out, strings.TrimSpace(strings.Join(parts, " ")))
	}
	return out
}

// listAll follows NextPage until exhausted.
func listAll[T any](ctx context.Context, fetch func(opts gh.ListOptions) ([]T, *gh.Response, error)) ([]T, error) {
	var all []T
	opts := gh.ListOptions{PerPage: MaxPageSize, Page: 1}
	for pages := 0; ; pages++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pages >= MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
		items, resp, err := fetch(opts)
		if err != nil {
			return nil, wrapError(err)
		}
		all = append(all, items...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListIssues returns every issue in the repository, excluding pull requests.
func (c *Client) ListIssues(ctx context.Context) ([]*gh.Issue, error) {
	issues, err := listAll(ctx, func(lo gh.ListOptions) ([]*gh.Issue, *gh.Response, error) {
		return c.api.Issues.ListByRepo(ctx, c.Owner, c.Repo, &gh.IssueListByRepoOptions{
			State:       "all",
			Sort:        "created",
			Direction:   "asc",
			ListOptions: lo,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	out := issues[:0]
	for _, i := range issues {
		if !i.IsPullRequest() {
			out = append(out, i)
		}
	}
	return out, nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, req *gh.IssueRequest) (*gh.Issue, error) {
	issue, _, err := c.api.Issues.Create(ctx, c.Owner, c.Repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", wrapError(err))
	}
	return issue, nil
}

// EditIssue updates an existing issue.
func (c *Client) EditIssue(ctx context.Context, number int, req *gh.IssueRequest) (*gh.Issue, error) {
	issue, _, err := c.api.Issues.Edit(ctx, c.Owner, c.Repo, number, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue #%d: %w", number, wrapError(err))
	}
	return issue, nil
}

// ListMilestones returns every milestone, open or closed.
func (c *Client) ListMilestones(ctx context.Context) ([]*gh.Milestone, error) {
	milestones, err := listAll(ctx, func(lo gh.ListOptions) ([]*gh.Milestone, *gh.Response, error) {
		return c.api.Issues.ListMilestones(ctx, c.Owner, c.Repo, &gh.MilestoneListOptions{State: "all", ListOptions: lo})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	return milestones, nil
}

// CreateMilestone creates a milestone.
func (c *Client) CreateMilestone(ctx context.Context, m *gh.Milestone) (*gh.Milestone, error) {
	created, _, err := c.api.Issues.CreateMilestone(ctx, c.Owner, c.Repo, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone %q: %w", m.GetTitle(), wrapError(err))
	}
	return created, nil
}

// ListPullRequests returns every pull request, open or closed.
func (c *Client) ListPullRequests(ctx context.Context) ([]*gh.PullRequest, error) {
	pulls, err := listAll(ctx, func(lo gh.ListOptions) ([]*gh.PullRequest, *gh.Response, error) {
		return c.api.PullRequests.List(ctx, c.Owner, c.Repo, &gh.PullRequestListOptions{State: "all", ListOptions: lo})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	return pulls, nil
}

// ListBranches returns the repository's branches.
func (c *Client) ListBranches(ctx context.Context) ([]*gh.Branch, error) {
	branches, err := listAll(ctx, func(lo gh.ListOptions) ([]*gh.Branch, *gh.Response, error) {
		return c.api.Repositories.ListBranches(ctx, c.Owner, c.Repo, &gh.BranchListOptions{ListOptions: lo})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, req *gh.NewPullRequest) (*gh.PullRequest, error) {
	pr, _, err := c.api.PullRequests.Create(ctx, c.Owner, c.Repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request %s -> %s: %w", req.GetHead(), req.GetBase(), wrapError(err))
	}
	return pr, nil
}

// EditPullRequest updates an existing pull request.
func (c *Client) EditPullRequest(ctx context.Context, number int, pr *gh.PullRequest) (*gh.PullRequest, error) {
	updated, _, err := c.api.PullRequests.Edit(ctx, c.Owner, c.Repo, number, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to update pull request #%d: %w", number, wrapError(err))
	}
	return updated, nil
}
