package migrate

import (
	"context"
	"fmt"

	"github.com/alnlarsen/labtohub/internal/timeparsing"
)

var parseDueDate = timeparsing.ParseDueDate

// EnsureMilestone returns the destination milestone number for m, creating the
// milestone on first reference. Milestones are matched by exact title.
// Creation failures propagate to the caller; there is no local recovery.
func (e *Engine) EnsureMilestone(ctx context.Context, p *Pass, m SourceMilestone) (int, error) {
	if n, ok := p.Milestones[m.Title]; ok {
		return n, nil
	}

	req := MilestoneRequest{
		Title:       m.Title,
		Description: m.Description,
		Closed:      m.Closed,
	}
	if m.DueDate != "" {
		if due, err := parseDueDate(m.DueDate, e.now()); err == nil {
			req.DueOn = &due
		} else {
			e.warn("Milestone %q: ignoring due date: %v", m.Title, err)
		}
	}

	var number int
	if e.Options.DryRun {
		number = p.nextSynthetic()
		e.msg("[dry-run] Would create milestone %q", m.Title)
	} else {
		created, err := e.Destination.CreateMilestone(ctx, req)
		if err != nil {
			return 0, fmt.Errorf("create milestone %q: %w", m.Title, err)
		}
		number = created.Number
		e.msg("Created milestone %q", m.Title)
	}
	p.Milestones[m.Title] = number
	p.Stats.MilestonesCreated++
	return number, nil
}
