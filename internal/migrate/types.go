// Package migrate moves issues, milestones and merge requests from a source
// tracker to a destination tracker.
//
// The engine is re-runnable against partially migrated state: every item it
// creates carries a provenance marker pointing back at the source item, and
// every pass rebuilds its identity map from those markers before creating
// anything new.
package migrate

import (
	"context"
	"time"
)

// Project identifies the tracked project on the source platform.
type Project struct {
	ID        int
	Name      string
	Namespace string // full namespace path, e.g. "group/subgroup"
	WebURL    string
}

// SourceMilestone is a milestone as seen on the source platform.
type SourceMilestone struct {
	Title       string
	Description string
	DueDate     string // as reported by the source; may be empty or unparseable
	Closed      bool
}

// SourceItem is an issue or merge request snapshot from the source platform.
// Merge requests additionally carry branch and origin project information.
type SourceItem struct {
	IID         int
	Title       string
	Description string
	AuthorName  string
	CreatedAt   time.Time
	WebURL      string
	Labels      []string
	Milestone   *SourceMilestone

	SourceBranch    string
	TargetBranch    string
	SourceProjectID int
}

// DestinationItem is an issue or pull request on the destination platform.
type DestinationItem struct {
	Number    int
	Title     string
	Body      string
	State     string // "open" or "closed"
	Labels    []string
	Milestone *int
	URL       string
}

// DestinationMilestone is a milestone on the destination platform.
type DestinationMilestone struct {
	Number int
	Title  string
}

// IssueRequest describes a destination issue to create.
type IssueRequest struct {
	Title     string
	Body      string
	Labels    []string
	Milestone *int
}

// ItemUpdate carries the fields rewritten on an existing destination item.
// State is never part of an update.
type ItemUpdate struct {
	Title string
	Body  string
}

// MilestoneRequest describes a destination milestone to create.
type MilestoneRequest struct {
	Title       string
	Description string
	DueOn       *time.Time
	Closed      bool
}

// PullRequestRequest describes a destination pull request to create.
type PullRequestRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// Rename maps one source name to a destination name. Used for labels and
// user handles.
type Rename struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}

// Source is the capability surface consumed from the source platform.
type Source interface {
	// ListProjects returns projects in namespace, visible to the credentials,
	// whose name matches search. An empty namespace lists the projects the
	// credentials are a member of.
	ListProjects(ctx context.Context, namespace, search string) ([]Project, error)
	FetchIssues(ctx context.Context, projectID int) ([]SourceItem, error)
	FetchMergeRequests(ctx context.Context, projectID int) ([]SourceItem, error)
	CreateIssueNote(ctx context.Context, projectID, iid int, body string) error
	// UpdateIssueLabels replaces the full label set of an issue.
	UpdateIssueLabels(ctx context.Context, projectID, iid int, labels []string) error
}

// Destination is the capability surface consumed from the destination platform.
// Listing calls return items in every state.
type Destination interface {
	FetchIssues(ctx context.Context) ([]DestinationItem, error)
	CreateIssue(ctx context.Context, req IssueRequest) (*DestinationItem, error)
	UpdateIssue(ctx context.Context, number int, upd ItemUpdate) (*DestinationItem, error)
	FetchMilestones(ctx context.Context) ([]DestinationMilestone, error)
	CreateMilestone(ctx context.Context, req MilestoneRequest) (*DestinationMilestone, error)
	FetchPullRequests(ctx context.Context) ([]DestinationItem, error)
	FetchBranches(ctx context.Context) ([]string, error)
	CreatePullRequest(ctx context.Context, req PullRequestRequest) (*DestinationItem, error)
	UpdatePullRequest(ctx context.Context, number int, upd ItemUpdate) (*DestinationItem, error)
}

// Mirror moves branches from a local clone of the source repository to the
// destination.
type Mirror interface {
	Checkout(ctx context.Context, branch string) error
	// Push pushes the checked out commit to branch on the destination remote.
	Push(ctx context.Context, branch string) error
}
