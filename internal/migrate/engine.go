package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/alnlarsen/labtohub/internal/debug"
)

// Defaults applied by NewEngine.
const (
	DefaultMigratedLabel   = "MigratedToGitHub"
	DefaultIssueCooldown   = time.Second
	DefaultPushCooldown    = 2 * time.Second
	DefaultRetryCooloff    = 10 * time.Second
	DefaultSourceMain      = "master"
	DefaultDestinationMain = "main"
)

const tracerName = "github.com/alnlarsen/labtohub/migrate"

// Options configures a migration run.
type Options struct {
	Namespace   string
	ProjectName string

	// SourceMainBranch is the source default-branch alias that is renamed to
	// DestinationDefaultBranch when used as a merge request target.
	SourceMainBranch         string
	DestinationDefaultBranch string

	LabelRenames  []Rename
	UserRenames   []Rename
	MigratedLabel string

	IssueCooldown time.Duration
	PushCooldown  time.Duration
	RetryCooloff  time.Duration
	MaxRetries    int // 0 retries forever

	DryRun            bool
	SkipMergeRequests bool
}

// Engine runs migration passes between a source and a destination.
type Engine struct {
	Source      Source
	Destination Destination
	Mirror      Mirror // may be nil when merge requests are skipped
	Options     Options

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)

	// Sleep waits for d, returning an error only when ctx is done. It paces
	// cooldowns and the retry cool-off. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now returns the current time, used to resolve relative due dates.
	Now func() time.Time
}

// NewEngine creates an engine with default options filled in.
func NewEngine(src Source, dst Destination, mirror Mirror, opts Options) *Engine {
	if opts.MigratedLabel == "" {
		opts.MigratedLabel = DefaultMigratedLabel
	}
	if opts.SourceMainBranch == "" {
		opts.SourceMainBranch = DefaultSourceMain
	}
	if opts.DestinationDefaultBranch == "" {
		opts.DestinationDefaultBranch = DefaultDestinationMain
	}
	if opts.IssueCooldown == 0 {
		opts.IssueCooldown = DefaultIssueCooldown
	}
	if opts.PushCooldown == 0 {
		opts.PushCooldown = DefaultPushCooldown
	}
	if opts.RetryCooloff == 0 {
		opts.RetryCooloff = DefaultRetryCooloff
	}
	return &Engine{
		Source:      src,
		Destination: dst,
		Mirror:      mirror,
		Options:     opts,
		Sleep:       sleepContext,
		Now:         time.Now,
	}
}

// Pass holds the state owned by one migration pass.
type Pass struct {
	Project    Project
	Identity   IdentityMap
	Issues     []DestinationItem // destination issue snapshot, extended as issues are created
	Milestones map[string]int    // destination milestone number by title
	Stats      Stats

	sourceIssues []SourceItem
	rewriter     *Rewriter
	synthetic    int // next fake number handed out in dry-run mode
}

// ResolveProject finds the tracked project by exact namespace and name match.
func (e *Engine) ResolveProject(ctx context.Context) (*Project, error) {
	projects, err := e.Source.ListProjects(ctx, e.Options.Namespace, e.Options.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for i := range projects {
		if projects[i].Namespace == e.Options.Namespace && projects[i].Name == e.Options.ProjectName {
			return &projects[i], nil
		}
	}
	return nil, &ProjectNotFoundError{Namespace: e.Options.Namespace, Name: e.Options.ProjectName}
}

// Run resolves the project and runs passes until one succeeds, a fatal error
// occurs, or the retry budget is exhausted. Only forbidden-class failures are
// retried, each after Options.RetryCooloff.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	project, err := e.ResolveProject(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Project: *project}

	op := func() error {
		result.Attempts++
		pr := e.RunPass(ctx, *project, result.Attempts)
		result.Stats = pr.Stats
		switch pr.Outcome {
		case OutcomeSuccess:
			return nil
		case OutcomeRetryable:
			return pr.Err
		default:
			return backoff.Permanent(pr.Err)
		}
	}

	cooloff := e.Options.RetryCooloff
	if cooloff <= 0 {
		cooloff = DefaultRetryCooloff
	}
	var bo backoff.BackOff = backoff.NewConstantBackOff(cooloff)
	if e.Options.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(e.Options.MaxRetries))
	}
	notify := func(err error, wait time.Duration) {
		e.warn("%v", err)
		e.msg("Cooling off for %s.", wait)
	}
	timer := &sleepTimer{ctx: ctx, sleep: e.Sleep}
	if err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(bo, ctx), notify, timer); err != nil {
		return result, err
	}
	return result, nil
}

// RunPass performs one full pass: issues first, then merge requests.
// Every snapshot is fetched fresh so a pass can be re-run after any failure.
func (e *Engine) RunPass(ctx context.Context, project Project, attempt int) PassResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "labtohub.pass")
	span.SetAttributes(
		attribute.Int("labtohub.attempt", attempt),
		attribute.Int("labtohub.project_id", project.ID),
		attribute.Bool("labtohub.dry_run", e.Options.DryRun),
	)
	defer span.End()

	p, err := e.NewPass(ctx, project)
	if err == nil {
		err = e.migrateIssues(ctx, p)
	}
	if err == nil && !e.Options.SkipMergeRequests {
		err = e.migratePullRequests(ctx, p)
	}

	res := PassResult{Outcome: Classify(err), Err: err}
	if p != nil {
		res.Stats = p.Stats
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("labtohub.outcome", res.Outcome.String()))
	return res
}

// NewPass fetches the snapshots a pass works from and seeds the identity map
// from provenance markers already present on the destination.
func (e *Engine) NewPass(ctx context.Context, project Project) (*Pass, error) {
	issues, err := e.Source.FetchIssues(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch source issues: %w", err)
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].IID < issues[j].IID })

	destIssues, err := e.Destination.FetchIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch destination issues: %w", err)
	}
	milestones, err := e.Destination.FetchMilestones(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch destination milestones: %w", err)
	}

	p := &Pass{
		Project:      project,
		Identity:     make(IdentityMap),
		Issues:       destIssues,
		Milestones:   make(map[string]int, len(milestones)),
		sourceIssues: issues,
		rewriter:     NewRewriter(e.Options.UserRenames, issueBaseURL(issues, project), project.WebURL),
	}
	for _, m := range milestones {
		if _, ok := p.Milestones[m.Title]; !ok {
			p.Milestones[m.Title] = m.Number
		}
	}
	for _, issue := range issues {
		if existing := FindExisting(issue, p.Issues); existing != nil {
			p.Identity.Add(issue.IID, existing.Number)
		}
	}
	debug.Logf("labtohub: pass seeded %d of %d issues from %d destination issues\n",
		len(p.Identity), len(issues), len(destIssues))
	return p, nil
}

// Body returns the destination body the pass would write for item.
func (p *Pass) Body(item SourceItem) string {
	return buildBody(item, p.rewriter, p.Identity)
}

func (p *Pass) nextSynthetic() int {
	p.synthetic--
	return p.synthetic
}

// Preview returns the destination body for source issue iid without mutating
// anything.
func (e *Engine) Preview(ctx context.Context, iid int) (string, error) {
	project, err := e.ResolveProject(ctx)
	if err != nil {
		return "", err
	}
	p, err := e.NewPass(ctx, *project)
	if err != nil {
		return "", err
	}
	for _, issue := range p.sourceIssues {
		if issue.IID == iid {
			return p.Body(issue), nil
		}
	}
	return "", fmt.Errorf("issue #%d not found in %s/%s", iid, project.Namespace, project.Name)
}

func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if e.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return e.Sleep(ctx, d)
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// sleepTimer is a backoff.Timer driven by Engine.Sleep. Start blocks for the
// whole wait; C fires only if the wait completed.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
