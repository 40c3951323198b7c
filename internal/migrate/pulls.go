package migrate

import (
	"context"
	"fmt"
	"sort"
)

// migratePullRequests mirrors branches and creates or updates a destination
// pull request for every merge request that originates in the tracked project.
// Validation failures on create skip the item; other failures abort the pass.
func (e *Engine) migratePullRequests(ctx context.Context, p *Pass) error {
	mrs, err := e.Source.FetchMergeRequests(ctx, p.Project.ID)
	if err != nil {
		return fmt.Errorf("fetch merge requests: %w", err)
	}
	sort.SliceStable(mrs, func(i, j int) bool { return mrs[i].IID < mrs[j].IID })

	pulls, err := e.Destination.FetchPullRequests(ctx)
	if err != nil {
		return fmt.Errorf("fetch pull requests: %w", err)
	}
	names, err := e.Destination.FetchBranches(ctx)
	if err != nil {
		return fmt.Errorf("fetch branches: %w", err)
	}
	branches := make(map[string]bool, len(names))
	for _, n := range names {
		branches[n] = true
	}

	for _, mr := range mrs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if mr.SourceProjectID != p.Project.ID {
			e.msg("Skipping !%d because it is from a fork.", mr.IID)
			p.Stats.PullsSkipped++
			continue
		}

		body := p.Body(mr)
		if existing := FindExisting(mr, pulls); existing != nil {
			if err := e.updatePull(ctx, p, mr, existing, body); err != nil {
				return err
			}
			continue
		}

		base := mr.TargetBranch
		if base == e.Options.SourceMainBranch {
			base = e.Options.DestinationDefaultBranch
		}
		if err := e.mirrorBranches(ctx, p, mr, base, branches); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.warn("Skipping !%d: %v", mr.IID, err)
			p.Stats.MirrorFailures++
			continue
		}

		req := PullRequestRequest{Title: mr.Title, Head: mr.SourceBranch, Base: base, Body: body}
		var created *DestinationItem
		if e.Options.DryRun {
			created = &DestinationItem{Number: p.nextSynthetic(), Title: req.Title, Body: req.Body, State: "open"}
			e.msg("[dry-run] Would create pull request from !%d: %s -> %s", mr.IID, req.Head, req.Base)
		} else {
			created, err = e.Destination.CreatePullRequest(ctx, req)
			if err != nil {
				msgs, ok := ValidationMessages(err)
				if !ok {
					return fmt.Errorf("create pull request from !%d: %w", mr.IID, err)
				}
				e.warn("Could not create pull request from !%d: %v", mr.IID, err)
				for _, m := range msgs {
					e.warn("\t%s", m)
				}
				p.Stats.PullsRejected++
				continue
			}
			e.msg("Created pull request #%d from !%d", created.Number, mr.IID)
		}
		pulls = append(pulls, *created)
		p.Stats.PullsCreated++
	}
	return nil
}

func (e *Engine) updatePull(ctx context.Context, p *Pass, mr SourceItem, existing *DestinationItem, body string) error {
	if existing.Body == body && existing.Title == mr.Title {
		p.Stats.PullsUnchanged++
		return nil
	}
	if e.Options.DryRun {
		e.msg("[dry-run] Would update pull request #%d from !%d", existing.Number, mr.IID)
	} else {
		if _, err := e.Destination.UpdatePullRequest(ctx, existing.Number, ItemUpdate{Title: mr.Title, Body: body}); err != nil {
			return fmt.Errorf("update pull request #%d: %w", existing.Number, err)
		}
		e.msg("Updated pull request #%d from !%d", existing.Number, mr.IID)
	}
	existing.Title, existing.Body = mr.Title, body
	p.Stats.PullsUpdated++
	return nil
}

// mirrorBranches pushes the target branch (once per pass, and only if the
// destination lacks it) and the source branch, then waits for the destination
// to index them.
func (e *Engine) mirrorBranches(ctx context.Context, p *Pass, mr SourceItem, base string, branches map[string]bool) error {
	if e.Options.DryRun {
		if !branches[base] {
			e.msg("[dry-run] Would push %s as %s", mr.TargetBranch, base)
			branches[base] = true
		}
		e.msg("[dry-run] Would push %s", mr.SourceBranch)
		return nil
	}
	if e.Mirror == nil {
		return fmt.Errorf("no local mirror configured")
	}

	if !branches[base] {
		if err := e.Mirror.Checkout(ctx, mr.TargetBranch); err != nil {
			return fmt.Errorf("checkout %s: %w", mr.TargetBranch, err)
		}
		if err := e.Mirror.Push(ctx, base); err != nil {
			return fmt.Errorf("push %s: %w", base, err)
		}
		branches[base] = true
		p.Stats.BranchesPushed++
	}
	if err := e.Mirror.Checkout(ctx, mr.SourceBranch); err != nil {
		return fmt.Errorf("checkout %s: %w", mr.SourceBranch, err)
	}
	if err := e.Mirror.Push(ctx, mr.SourceBranch); err != nil {
		return fmt.Errorf("push %s: %w", mr.SourceBranch, err)
	}
	branches[mr.SourceBranch] = true
	p.Stats.BranchesPushed++

	return e.sleep(ctx, e.Options.PushCooldown)
}
