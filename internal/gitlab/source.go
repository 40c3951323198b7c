package gitlab

import (
	"context"
	"time"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

// Source adapts a Client to migrate.Source.
type Source struct {
	client *Client
}

// NewSource wraps client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

var _ migrate.Source = (*Source)(nil)

// ListProjects implements migrate.Source.
func (s *Source) ListProjects(ctx context.Context, namespace, search string) ([]migrate.Project, error) {
	projects, err := s.client.ListProjects(ctx, namespace, search)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.Project, 0, len(projects))
	for _, p := range projects {
		mp := migrate.Project{ID: p.ID, Name: p.Name, WebURL: p.WebURL}
		if p.Namespace != nil {
			mp.Namespace = p.Namespace.FullPath
		}
		out = append(out, mp)
	}
	return out, nil
}

// FetchIssues implements migrate.Source.
func (s *Source) FetchIssues(ctx context.Context, projectID int) ([]migrate.SourceItem, error) {
	issues, err := s.client.FetchIssues(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.SourceItem, 0, len(issues))
	for _, i := range issues {
		out = append(out, migrate.SourceItem{
			IID:         i.IID,
			Title:       i.Title,
			Description: i.Description,
			AuthorName:  authorName(i.Author),
			CreatedAt:   timeOrZero(i.CreatedAt),
			WebURL:      i.WebURL,
			Labels:      i.Labels,
			Milestone:   milestoneToSource(i.Milestone),
		})
	}
	return out, nil
}

// FetchMergeRequests implements migrate.Source.
func (s *Source) FetchMergeRequests(ctx context.Context, projectID int) ([]migrate.SourceItem, error) {
	mrs, err := s.client.FetchMergeRequests(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]migrate.SourceItem, 0, len(mrs))
	for _, mr := range mrs {
		out = append(out, migrate.SourceItem{
			IID:             mr.IID,
			Title:           mr.Title,
			Description:     mr.Description,
			AuthorName:      authorName(mr.Author),
			CreatedAt:       timeOrZero(mr.CreatedAt),
			WebURL:          mr.WebURL,
			Labels:          mr.Labels,
			Milestone:       milestoneToSource(mr.Milestone),
			SourceBranch:    mr.SourceBranch,
			TargetBranch:    mr.TargetBranch,
			SourceProjectID: mr.SourceProjectID,
		})
	}
	return out, nil
}

// CreateIssueNote implements migrate.Source.
func (s *Source) CreateIssueNote(ctx context.Context, projectID, iid int, body string) error {
	_, err := s.client.CreateIssueNote(ctx, projectID, iid, body)
	return err
}

// UpdateIssueLabels implements migrate.Source.
func (s *Source) UpdateIssueLabels(ctx context.Context, projectID, iid int, labels []string) error {
	_, err := s.client.SetIssueLabels(ctx, projectID, iid, labels)
	return err
}

func authorName(u *User) string {
	if u == nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func milestoneToSource(m *Milestone) *migrate.SourceMilestone {
	if m == nil {
		return nil
	}
	return &migrate.SourceMilestone{
		Title:       m.Title,
		Description: m.Description,
		DueDate:     m.DueDate,
		Closed:      m.State == "closed",
	}
}
