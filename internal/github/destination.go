package github

import (
	"context"

	gh "github.com/google/go-github/v68/github"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

// Destination adapts a Client to migrate.Destination.
type Destination struct {
	client *Client
}

// NewDestination wraps client.
func NewDestination(client *Client) *Destination {
	return &Destination{client: client}
}

var _ migrate.Destination = (*Destination)(nil)

// FetchIssues implements migrate.Destination.
func (d *Destination) FetchIssues(ctx context.Context) ([]migrate.DestinationItem, error) {
	issues, err := d.client.ListIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.DestinationItem, 0, len(issues))
	for _, i := range issues {
		out = append(out, issueToItem(i))
	}
	return out, nil
}

// CreateIssue implements migrate.Destination.
func (d *Destination) CreateIssue(ctx context.Context, req migrate.IssueRequest) (*migrate.DestinationItem, error) {
	ghReq := &gh.IssueRequest{
		Title:     gh.Ptr(req.Title),
		Body:      gh.Ptr(req.Body),
		Milestone: req.Milestone,
	}
	if len(req.Labels) > 0 {
		labels := append([]string(nil), req.Labels...)
		ghReq.Labels = &labels
	}
	issue, err := d.client.CreateIssue(ctx, ghReq)
	if err != nil {
		return nil, err
	}
	item := issueToItem(issue)
	return &item, nil
}

// UpdateIssue implements migrate.Destination. Only title and body change.
func (d *Destination) UpdateIssue(ctx context.Context, number int, upd migrate.ItemUpdate) (*migrate.DestinationItem, error) {
	issue, err := d.client.EditIssue(ctx, number, &gh.IssueRequest{Title: gh.Ptr(upd.Title), Body: gh.Ptr(upd.Body)})
	if err != nil {
		return nil, err
	}
	item := issueToItem(issue)
	return &item, nil
}

// FetchMilestones implements migrate.Destination.
func (d *Destination) FetchMilestones(ctx context.Context) ([]migrate.DestinationMilestone, error) {
	milestones, err := d.client.ListMilestones(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.DestinationMilestone, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, migrate.DestinationMilestone{Number: m.GetNumber(), Title: m.GetTitle()})
	}
	return out, nil
}

// CreateMilestone implements migrate.Destination.
func (d *Destination) CreateMilestone(ctx context.Context, req migrate.MilestoneRequest) (*migrate.DestinationMilestone, error) {
	m := &gh.Milestone{
		Title: gh.Ptr(req.Title),
		State: gh.Ptr("open"),
	}
	if req.Description != "" {
		m.Description = gh.Ptr(req.Description)
	}
	if req.DueOn != nil {
		m.DueOn = &gh.Timestamp{Time: *req.DueOn}
	}
	if req.Closed {
		m.State = gh.Ptr("closed")
	}
	created, err := d.client.CreateMilestone(ctx, m)
	if err != nil {
		return nil, err
	}
	return &migrate.DestinationMilestone{Number: created.GetNumber(), Title: created.GetTitle()}, nil
}

// FetchPullRequests implements migrate.Destination.
func (d *Destination) FetchPullRequests(ctx context.Context) ([]migrate.DestinationItem, error) {
	pulls, err := d.client.ListPullRequests(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.DestinationItem, 0, len(pulls))
	for _, p := range pulls {
		out = append(out, pullToItem(p))
	}
	return out, nil
}

// FetchBranches implements migrate.Destination.
func (d *Destination) FetchBranches(ctx context.Context) ([]string, error) {
	branches, err := d.client.ListBranches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		out = append(out, b.GetName())
	}
	return out, nil
}

// CreatePullRequest implements migrate.Destination.
func (d *Destination) CreatePullRequest(ctx context.Context, req migrate.PullRequestRequest) (*migrate.DestinationItem, error) {
	pr, err := d.client.CreatePullRequest(ctx, &gh.NewPullRequest{
		Title: gh.Ptr(req.Title),
		Head:  gh.Ptr(req.Head),
		Base:  gh.Ptr(req.Base),
		Body:  gh.Ptr(req.Body),
	})
	if err != nil {
		return nil, err
	}
	item := pullToItem(pr)
	return &item, nil
}

// UpdatePullRequest implements migrate.Destination. Only title and body change.
func (d *Destination) UpdatePullRequest(ctx context.Context, number int, upd migrate.ItemUpdate) (*migrate.DestinationItem, error) {
	pr, err := d.client.EditPullRequest(ctx, number, &gh.PullRequest{Title: gh.Ptr(upd.Title), Body: gh.Ptr(upd.Body)})
	if err != nil {
		return nil, err
	}
	item := pullToItem(pr)
	return &item, nil
}

func issueToItem(i *gh.Issue) migrate.DestinationItem {
	item := migrate.DestinationItem{
		Number: i.GetNumber(),
		Title:  i.GetTitle(),
		Body:   i.GetBody(),
		State:  i.GetState(),
		URL:    i.GetHTMLURL(),
	}
	for _, l := range i.Labels {
		item.Labels = append(item.Labels, l.GetName())
	}
	if i.Milestone != nil {
		n := i.Milestone.GetNumber()
		item.Milestone = &n
	}
	return item
}

func pullToItem(p *gh.PullRequest) migrate.DestinationItem {
	item := migrate.DestinationItem{
		Number: p.GetNumber(),
		Title:  p.GetTitle(),
		Body:   p.GetBody(),
		State:  p.GetState(),
		URL:    p.GetHTMLURL(),
	}
	for _, l := range p.Labels {
		item.Labels = append(item.Labels, l.GetName())
	}
	if p.Milestone != nil {
		n := p.Milestone.GetNumber()
		item.Milestone = &n
	}
	return item
}
