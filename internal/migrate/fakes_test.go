package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type forbiddenErr struct{}

func (forbiddenErr) Error() string   { return "403 Forbidden" }
func (forbiddenErr) Forbidden() bool { return true }

type validationErr struct{ msgs []string }

func (e validationErr) Error() string                { return "422 Validation Failed" }
func (e validationErr) ValidationMessages() []string { return e.msgs }

type note struct {
	iid  int
	body string
}

type fakeSource struct {
	projects []Project
	issues   []SourceItem
	mrs      []SourceItem

	notes  []note
	labels map[int][]string

	listNamespaces []string

	listErr  error
	issueErr error
	noteErrs []error // popped per CreateIssueNote call
}

func (s *fakeSource) ListProjects(_ context.Context, namespace, search string) ([]Project, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.listNamespaces = append(s.listNamespaces, namespace)
	var out []Project
	for _, p := range s.projects {
		if (namespace == "" || p.Namespace == namespace) && strings.Contains(p.Name, search) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeSource) FetchIssues(context.Context, int) ([]SourceItem, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	out := make([]SourceItem, len(s.issues))
	for i, issue := range s.issues {
		issue.Labels = append([]string(nil), s.currentLabels(issue)...)
		out[i] = issue
	}
	return out, nil
}

func (s *fakeSource) currentLabels(issue SourceItem) []string {
	if l, ok := s.labels[issue.IID]; ok {
		return l
	}
	return issue.Labels
}

func (s *fakeSource) FetchMergeRequests(context.Context, int) ([]SourceItem, error) {
	return append([]SourceItem(nil), s.mrs...), nil
}

func (s *fakeSource) CreateIssueNote(_ context.Context, _ int, iid int, body string) error {
	if len(s.noteErrs) > 0 {
		err := s.noteErrs[0]
		s.noteErrs = s.noteErrs[1:]
		if err != nil {
			return err
		}
	}
	s.notes = append(s.notes, note{iid: iid, body: body})
	return nil
}

func (s *fakeSource) UpdateIssueLabels(_ context.Context, _ int, iid int, labels []string) error {
	if s.labels == nil {
		s.labels = make(map[int][]string)
	}
	s.labels[iid] = append([]string(nil), labels...)
	return nil
}

type fakeDestination struct {
	issues     []DestinationItem
	pulls      []DestinationItem
	milestones []DestinationMilestone
	branches   []string
	next       int

	createdIssues     []IssueRequest
	updatedIssues     []int
	createdMilestones []MilestoneRequest
	createdPulls      []PullRequestRequest
	updatedPulls      []int

	createIssueErr error
	createPullErrs map[string]error // keyed by head branch
}

func (d *fakeDestination) number() int {
	d.next++
	return d.next
}

func (d *fakeDestination) FetchIssues(context.Context) ([]DestinationItem, error) {
	return append([]DestinationItem(nil), d.issues...), nil
}

func (d *fakeDestination) CreateIssue(_ context.Context, req IssueRequest) (*DestinationItem, error) {
	if d.createIssueErr != nil {
		return nil, d.createIssueErr
	}
	n := d.number()
	item := DestinationItem{Number: n, Title: req.Title, Body: req.Body, State: "open", Labels: req.Labels,
		Milestone: req.Milestone, URL: fmt.Sprintf("https://github.test/o/r/issues/%d", n)}
	d.issues = append(d.issues, item)
	d.createdIssues = append(d.createdIssues, req)
	return &item, nil
}

func (d *fakeDestination) UpdateIssue(_ context.Context, number int, upd ItemUpdate) (*DestinationItem, error) {
	for i := range d.issues {
		if d.issues[i].Number == number {
			d.issues[i].Title, d.issues[i].Body = upd.Title, upd.Body
			d.updatedIssues = append(d.updatedIssues, number)
			item := d.issues[i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("issue %d not found", number)
}

func (d *fakeDestination) FetchMilestones(context.Context) ([]DestinationMilestone, error) {
	return append([]DestinationMilestone(nil), d.milestones...), nil
}

func (d *fakeDestination) CreateMilestone(_ context.Context, req MilestoneRequest) (*DestinationMilestone, error) {
	m := DestinationMilestone{Number: 100 + len(d.milestones), Title: req.Title}
	d.milestones = append(d.milestones, m)
	d.createdMilestones = append(d.createdMilestones, req)
	return &m, nil
}

func (d *fakeDestination) FetchPullRequests(context.Context) ([]DestinationItem, error) {
	return append([]DestinationItem(nil), d.pulls...), nil
}

func (d *fakeDestination) FetchBranches(context.Context) ([]string, error) {
	return append([]string(nil), d.branches...), nil
}

func (d *fakeDestination) CreatePullRequest(_ context.Context, req PullRequestRequest) (*DestinationItem, error) {
	if err := d.createPullErrs[req.Head]; err != nil {
		return nil, err
	}
	n := d.number()
	item := DestinationItem{Number: n, Title: req.Title, Body: req.Body, State: "open",
		URL: fmt.Sprintf("https://github.test/o/r/pull/%d", n)}
	d.pulls = append(d.pulls, item)
	d.createdPulls = append(d.createdPulls, req)
	return &item, nil
}

func (d *fakeDestination) UpdatePullRequest(_ context.Context, number int, upd ItemUpdate) (*DestinationItem, error) {
	for i := range d.pulls {
		if d.pulls[i].Number == number {
			d.pulls[i].Title, d.pulls[i].Body = upd.Title, upd.Body
			d.updatedPulls = append(d.updatedPulls, number)
			item := d.pulls[i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("pull %d not found", number)
}

type fakeMirror struct {
	ops      []string
	failOn   map[string]error // keyed by "checkout X" or "push X"
	checkout string
}

func (m *fakeMirror) Checkout(_ context.Context, branch string) error {
	op := "checkout " + branch
	if err := m.failOn[op]; err != nil {
		return err
	}
	m.ops = append(m.ops, op)
	m.checkout = branch
	return nil
}

func (m *fakeMirror) Push(_ context.Context, branch string) error {
	op := "push " + branch
	if err := m.failOn[op]; err != nil {
		return err
	}
	m.ops = append(m.ops, op)
	return nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

var testProject = Project{ID: 7, Name: "proj", Namespace: "group", WebURL: "https://gitlab.test/group/proj"}

func sourceIssue(iid int, title, desc string, labels ...string) SourceItem {
	return SourceItem{
		IID:         iid,
		Title:       title,
		Description: desc,
		AuthorName:  "Alice Example",
		CreatedAt:   time.Date(2021, time.March, 4, 10, 0, 0, 0, time.UTC),
		WebURL:      fmt.Sprintf("https://gitlab.test/group/proj/-/issues/%d", iid),
		Labels:      labels,
	}
}

func mergeRequest(iid int, source, target string, projectID int) SourceItem {
	return SourceItem{
		IID:             iid,
		Title:           fmt.Sprintf("MR %d", iid),
		Description:     "see #1",
		AuthorName:      "Bob Example",
		CreatedAt:       time.Date(2021, time.April, 1, 10, 0, 0, 0, time.UTC),
		WebURL:          fmt.Sprintf("https://gitlab.test/group/proj/-/merge_requests/%d", iid),
		SourceBranch:    source,
		TargetBranch:    target,
		SourceProjectID: projectID,
	}
}

type harness struct {
	src    *fakeSource
	dst    *fakeDestination
	mirror *fakeMirror
	sleeps *sleepRecorder
	engine *Engine
	msgs   []string
	warns  []string
}

func newHarness(opts Options) *harness {
	h := &harness{
		src:    &fakeSource{projects: []Project{testProject}},
		dst:    &fakeDestination{branches: []string{"main"}},
		mirror: &fakeMirror{},
		sleeps: &sleepRecorder{},
	}
	if opts.Namespace == "" {
		opts.Namespace = testProject.Namespace
	}
	if opts.ProjectName == "" {
		opts.ProjectName = testProject.Name
	}
	if opts.RetryCooloff == 0 {
		opts.RetryCooloff = time.Millisecond
	}
	h.engine = NewEngine(h.src, h.dst, h.mirror, opts)
	h.engine.Sleep = h.sleeps.Sleep
	h.engine.Now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	h.engine.OnMessage = func(m string) { h.msgs = append(h.msgs, m) }
	h.engine.OnWarning = func(m string) { h.warns = append(h.warns, m) }
	return h
}
