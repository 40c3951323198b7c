package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alnlarsen/labtohub/internal/migrate"
)

const platformScopeName = "github.com/alnlarsen/labtohub/platform"

// instruments records one span and three metrics per platform call:
// labtohub.api.operations, labtohub.api.operation.duration and
// labtohub.api.errors, all tagged with the platform and operation names.
type instruments struct {
	platform string
	tracer   trace.Tracer
	ops      metric.Int64Counter
	dur      metric.Float64Histogram
	errs     metric.Int64Counter
}

func newInstruments(platform string, tracer trace.Tracer, m metric.Meter) *instruments {
	ops, _ := m.Int64Counter("labtohub.api.operations",
		metric.WithDescription("Total platform API operations executed"),
	)
	dur, _ := m.Float64Histogram("labtohub.api.operation.duration",
		metric.WithDescription("Platform API operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("labtohub.api.errors",
		metric.WithDescription("Total platform API operation errors"),
	)
	return &instruments{platform: platform, tracer: tracer, ops: ops, dur: dur, errs: errs}
}

// op starts a span and counts the named operation.
func (in *instruments) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	base := []attribute.KeyValue{
		attribute.String("labtohub.platform", in.platform),
		attribute.String("labtohub.operation", name),
	}
	ctx, span := in.tracer.Start(ctx, in.platform+"."+name,
		trace.WithAttributes(append(base, attrs...)...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	in.ops.Add(ctx, 1, metric.WithAttributes(base...))
	return ctx, span, time.Now(), base
}

// done ends the span, records duration and optional error.
func (in *instruments) done(ctx context.Context, span trace.Span, start time.Time, err error, base []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	in.dur.Record(ctx, ms, metric.WithAttributes(base...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		in.errs.Add(ctx, 1, metric.WithAttributes(base...))
	}
	span.End()
}

// InstrumentedSource wraps a migrate.Source with tracing and metrics.
type InstrumentedSource struct {
	inner migrate.Source
	in    *instruments
}

// WrapSource returns src decorated with OTel instrumentation.
// When telemetry is disabled, src is returned as-is.
func WrapSource(src migrate.Source) migrate.Source {
	if !Enabled() {
		return src
	}
	return newInstrumentedSource(src, Tracer(platformScopeName), Meter(platformScopeName))
}

func newInstrumentedSource(src migrate.Source, tracer trace.Tracer, m metric.Meter) *InstrumentedSource {
	return &InstrumentedSource{inner: src, in: newInstruments("gitlab", tracer, m)}
}

func (s *InstrumentedSource) ListProjects(ctx context.Context, namespace, search string) ([]migrate.Project, error) {
	ctx, span, t, base := s.in.op(ctx, "ListProjects",
		attribute.String("labtohub.namespace", namespace), attribute.String("labtohub.search", search))
	v, err := s.inner.ListProjects(ctx, namespace, search)
	s.in.done(ctx, span, t, err, base)
	return v, err
}

func (s *InstrumentedSource) FetchIssues(ctx context.Context, projectID int) ([]migrate.SourceItem, error) {
	ctx, span, t, base := s.in.op(ctx, "FetchIssues", attribute.Int("labtohub.project.id", projectID))
	v, err := s.inner.FetchIssues(ctx, projectID)
	span.SetAttributes(attribute.Int("labtohub.item.count", len(v)))
	s.in.done(ctx, span, t, err, base)
	return v, err
}

func (s *InstrumentedSource) FetchMergeRequests(ctx context.Context, projectID int) ([]migrate.SourceItem, error) {
	ctx, span, t, base := s.in.op(ctx, "FetchMergeRequests", attribute.Int("labtohub.project.id", projectID))
	v, err := s.inner.FetchMergeRequests(ctx, projectID)
	span.SetAttributes(attribute.Int("labtohub.item.count", len(v)))
	s.in.done(ctx, span, t, err, base)
	return v, err
}

func (s *InstrumentedSource) CreateIssueNote(ctx context.Context, projectID, iid int, body string) error {
	ctx, span, t, base := s.in.op(ctx, "CreateIssueNote",
		attribute.Int("labtohub.project.id", projectID),
		attribute.Int("labtohub.issue.iid", iid),
	)
	err := s.inner.CreateIssueNote(ctx, projectID, iid, body)
	s.in.done(ctx, span, t, err, base)
	return err
}

func (s *InstrumentedSource) UpdateIssueLabels(ctx context.Context, projectID, iid int, labels []string) error {
	ctx, span, t, base := s.in.op(ctx, "UpdateIssueLabels",
		attribute.Int("labtohub.project.id", projectID),
		attribute.Int("labtohub.issue.iid", iid),
		attribute.StringSlice("labtohub.labels", labels),
	)
	err := s.inner.UpdateIssueLabels(ctx, projectID, iid, labels)
	s.in.done(ctx, span, t, err, base)
	return err
}

// InstrumentedDestination wraps a migrate.Destination with tracing and metrics.
type InstrumentedDestination struct {
	inner migrate.Destination
	in    *instruments
}

// WrapDestination returns dst decorated with OTel instrumentation.
// When telemetry is disabled, dst is returned as-is.
func WrapDestination(dst migrate.Destination) migrate.Destination {
	if !Enabled() {
		return dst
	}
	return newInstrumentedDestination(dst, Tracer(platformScopeName), Meter(platformScopeName))
}

func newInstrumentedDestination(dst migrate.Destination, tracer trace.Tracer, m metric.Meter) *InstrumentedDestination {
	return &InstrumentedDestination{inner: dst, in: newInstruments("github", tracer, m)}
}

func (d *InstrumentedDestination) FetchIssues(ctx context.Context) ([]migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "FetchIssues")
	v, err := d.inner.FetchIssues(ctx)
	span.SetAttributes(attribute.Int("labtohub.item.count", len(v)))
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) CreateIssue(ctx context.Context, req migrate.IssueRequest) (*migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "CreateIssue", attribute.String("labtohub.title", req.Title))
	v, err := d.inner.CreateIssue(ctx, req)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) UpdateIssue(ctx context.Context, number int, upd migrate.ItemUpdate) (*migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "UpdateIssue", attribute.Int("labtohub.number", number))
	v, err := d.inner.UpdateIssue(ctx, number, upd)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) FetchMilestones(ctx context.Context) ([]migrate.DestinationMilestone, error) {
	ctx, span, t, base := d.in.op(ctx, "FetchMilestones")
	v, err := d.inner.FetchMilestones(ctx)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) CreateMilestone(ctx context.Context, req migrate.MilestoneRequest) (*migrate.DestinationMilestone, error) {
	ctx, span, t, base := d.in.op(ctx, "CreateMilestone", attribute.String("labtohub.title", req.Title))
	v, err := d.inner.CreateMilestone(ctx, req)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) FetchPullRequests(ctx context.Context) ([]migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "FetchPullRequests")
	v, err := d.inner.FetchPullRequests(ctx)
	span.SetAttributes(attribute.Int("labtohub.item.count", len(v)))
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) FetchBranches(ctx context.Context) ([]string, error) {
	ctx, span, t, base := d.in.op(ctx, "FetchBranches")
	v, err := d.inner.FetchBranches(ctx)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) CreatePullRequest(ctx context.Context, req migrate.PullRequestRequest) (*migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "CreatePullRequest",
		attribute.String("labtohub.head", req.Head),
		attribute.String("labtohub.base", req.Base),
	)
	v, err := d.inner.CreatePullRequest(ctx, req)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

func (d *InstrumentedDestination) UpdatePullRequest(ctx context.Context, number int, upd migrate.ItemUpdate) (*migrate.DestinationItem, error) {
	ctx, span, t, base := d.in.op(ctx, "UpdatePullRequest", attribute.Int("labtohub.number", number))
	v, err := d.inner.UpdatePullRequest(ctx, number, upd)
	d.in.done(ctx, span, t, err, base)
	return v, err
}

// InstrumentedMirror wraps a migrate.Mirror with tracing and metrics.
type InstrumentedMirror struct {
	inner migrate.Mirror
	in    *instruments
}

// WrapMirror returns m decorated with OTel instrumentation.
// When telemetry is disabled, m is returned as-is.
func WrapMirror(m migrate.Mirror) migrate.Mirror {
	if !Enabled() {
		return m
	}
	return newInstrumentedMirror(m, Tracer(platformScopeName), Meter(platformScopeName))
}

func newInstrumentedMirror(m migrate.Mirror, tracer trace.Tracer, meter metric.Meter) *InstrumentedMirror {
	return &InstrumentedMirror{inner: m, in: newInstruments("git", tracer, meter)}
}

func (m *InstrumentedMirror) Checkout(ctx context.Context, branch string) error {
	ctx, span, t, base := m.in.op(ctx, "Checkout", attribute.String("labtohub.branch", branch))
	err := m.inner.Checkout(ctx, branch)
	m.in.done(ctx, span, t, err, base)
	return err
}

func (m *InstrumentedMirror) Push(ctx context.Context, branch string) error {
	ctx, span, t, base := m.in.op(ctx, "Push", attribute.String("labtohub.branch", branch))
	err := m.inner.Push(ctx, branch)
	m.in.done(ctx, span, t, err, base)
	return err
}

var (
	_ migrate.Source      = (*InstrumentedSource)(nil)
	_ migrate.Destination = (*InstrumentedDestination)(nil)
	_ migrate.Mirror      = (*InstrumentedMirror)(nil)
)
