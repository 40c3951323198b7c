package migrate

import (
	"context"
	"fmt"
)

// migrateIssues creates or updates a destination issue for every source issue,
// in ascending source order, and announces each migrated issue on the source.
// Any platform failure aborts the pass.
func (e *Engine) migrateIssues(ctx context.Context, p *Pass) error {
	for _, issue := range p.sourceIssues {
		if err := ctx.Err(); err != nil {
			return err
		}
		url, err := e.migrateIssue(ctx, p, issue)
		if err != nil {
			return err
		}
		if err := e.announce(ctx, p, issue, url); err != nil {
			return err
		}
	}
	return nil
}

// migrateIssue returns the URL of the destination issue for issue.
func (e *Engine) migrateIssue(ctx context.Context, p *Pass, issue SourceItem) (string, error) {
	body := p.Body(issue)

	if existing := FindExisting(issue, p.Issues); existing != nil {
		p.Identity.Add(issue.IID, existing.Number)
		if existing.Body == body && existing.Title == issue.Title {
			p.Stats.IssuesUnchanged++
			return existing.URL, nil
		}
		if e.Options.DryRun {
			e.msg("[dry-run] Would update #%d from #%d", existing.Number, issue.IID)
		} else {
			if _, err := e.Destination.UpdateIssue(ctx, existing.Number, ItemUpdate{Title: issue.Title, Body: body}); err != nil {
				return "", fmt.Errorf("update issue #%d: %w", existing.Number, err)
			}
			e.msg("Updated #%d from #%d", existing.Number, issue.IID)
		}
		existing.Title, existing.Body = issue.Title, body
		p.Stats.IssuesUpdated++
		return existing.URL, nil
	}

	req := IssueRequest{
		Title:  issue.Title,
		Body:   body,
		Labels: e.destinationLabels(issue.Labels),
	}
	if issue.Milestone != nil {
		n, err := e.EnsureMilestone(ctx, p, *issue.Milestone)
		if err != nil {
			return "", err
		}
		req.Milestone = &n
	}

	var created *DestinationItem
	if e.Options.DryRun {
		created = &DestinationItem{Number: p.nextSynthetic(), Title: req.Title, Body: req.Body, State: "open", Labels: req.Labels}
		e.msg("[dry-run] Would create issue from #%d: %s", issue.IID, issue.Title)
	} else {
		var err error
		created, err = e.Destination.CreateIssue(ctx, req)
		if err != nil {
			return "", fmt.Errorf("create issue from #%d: %w", issue.IID, err)
		}
		e.msg("Created #%d from #%d", created.Number, issue.IID)
	}
	p.Issues = append(p.Issues, *created)
	p.Identity.Add(issue.IID, created.Number)
	p.Stats.IssuesCreated++

	if !e.Options.DryRun {
		if err := e.sleep(ctx, e.Options.IssueCooldown); err != nil {
			return "", err
		}
	}
	return created.URL, nil
}

// announce posts the "moved" note and adds the sentinel label, once.
func (e *Engine) announce(ctx context.Context, p *Pass, issue SourceItem, url string) error {
	if hasLabel(issue.Labels, e.Options.MigratedLabel) {
		return nil
	}
	note := fmt.Sprintf("This issue has moved to GitHub [here](%s).", url)
	labels := append(append([]string(nil), issue.Labels...), e.Options.MigratedLabel)

	if e.Options.DryRun {
		e.msg("[dry-run] Would add migrated label to #%d", issue.IID)
		p.Stats.IssuesAnnounced++
		return nil
	}
	if err := e.Source.CreateIssueNote(ctx, p.Project.ID, issue.IID, note); err != nil {
		return fmt.Errorf("note on #%d: %w", issue.IID, err)
	}
	if err := e.Source.UpdateIssueLabels(ctx, p.Project.ID, issue.IID, labels); err != nil {
		return fmt.Errorf("label #%d: %w", issue.IID, err)
	}
	p.Stats.IssuesAnnounced++
	e.msg("Added migrated label to #%d", issue.IID)
	return nil
}

// destinationLabels renames source labels through the rename table. The
// sentinel label never travels to the destination.
func (e *Engine) destinationLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == e.Options.MigratedLabel {
			continue
		}
		out = append(out, renameOne(e.Options.LabelRenames, l))
	}
	return out
}

func renameOne(table []Rename, name string) string {
	for _, r := range table {
		if r.From == name {
			return r.To
		}
	}
	return name
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
