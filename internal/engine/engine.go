package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tabcollate/internal/catalog"
	"github.com/nao1215/tabcollate/internal/extract"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/pipeline"
	"github.com/nao1215/tabcollate/internal/planner"
	"github.com/nao1215/tabcollate/internal/progress"
	"github.com/nao1215/tabcollate/internal/validate"
)

// Navigator is the page driver surface the engine needs.
// *driver.Driver implements it.
type Navigator interface {
	pipeline.Navigator
	catalog.Discoverer
	Select(ctx context.Context, at model.Selection, axis, value string) (model.Selection, error)
	Breakdown(ctx context.Context, axis string) error
	Interactions() int
}

// Engine collates targets through one page session.
// An Engine is not safe for concurrent use; make one per session.
type Engine struct {
	nav       Navigator
	axes      [3]string
	catalog   catalog.Catalog
	extractor *extract.Extractor
	validator *validate.Validator
	reporter  progress.Reporter
	logger    *slog.Logger

	optimize    bool
	sampleLimit int
	innermost   string
	route       model.Route
	revisits    int
	restrict    []model.Selection
	seed        *model.Dataset
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the page-backed catalog.
func WithCatalog(c catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithExtractor sets the table extractor.
func WithExtractor(x *extract.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithValidator sets the validator.
func WithValidator(v *validate.Validator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOptimize plans with sampled conditional branching factors.
func WithOptimize(enabled bool) Option {
	return func(e *Engine) {
		e.optimize = enabled
	}
}

// WithSampleLimit sets how many values per axis are sampled in optimize mode.
func WithSampleLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sampleLimit = n
		}
	}
}

// WithFixedBreakdown pins axis innermost for tables that only break down by it.
func WithFixedBreakdown(axis string) Option {
	return func(e *Engine) {
		e.innermost = axis
	}
}

// WithRoute skips planning and traverses route.
func WithRoute(route model.Route) Option {
	return func(e *Engine) {
		e.route = route
	}
}

// WithRevisitOnMismatch re-visits a node up to n more times when its totals
// disagree. Zero reports the first mismatch as a failure.
func WithRevisitOnMismatch(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.revisits = n
		}
	}
}

// WithRestrict limits traversal to combinations under the given prefixes,
// typically the failures of an earlier run.
func WithRestrict(prefixes []model.Selection) Option {
	return func(e *Engine) {
		e.restrict = prefixes
	}
}

// WithSeed starts from an earlier dataset. Visits it already holds are skipped.
func WithSeed(d *model.Dataset) Option {
	return func(e *Engine) {
		e.seed = d
	}
}

// New creates an Engine collating axes, in declared order, through nav.
func New(nav Navigator, axes [3]string, opts ...Option) *Engine {
	e := &Engine{
		nav:         nav,
		axes:        axes,
		sampleLimit: planner.DefaultSampleLimit,
		reporter:    progress.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.catalog == nil {
		e.catalog = catalog.NewChecked(catalog.NewLive(nav))
	}
	if e.extractor == nil {
		e.extractor = extract.New()
	}
	if e.validator == nil {
		e.validator = validate.New()
	}
	return e
}

// run holds the state of one Run call.
type run struct {
	*Engine
	target string
	report *model.RunReport
	ledger *validate.Ledger
	visit  *pipeline.Pipeline
}

// Run collates target.
//
// The report is never nil. Node failures are collected in the report and do
// not make Run fail. Run returns an error when ctx is done or a fold hits a
// key collision; the report then holds everything folded so far and is
// marked aborted.
func (e *Engine) Run(ctx context.Context, target string) (*model.RunReport, error) {
	r := &run{
		Engine: e,
		target: target,
		report: model.NewRunReport(target, e.axes),
		ledger: validate.NewLedger(),
	}
	if e.seed != nil {
		r.report.Dataset = e.seed
	}
	r.visit = pipeline.NewVisitPipeline(e.nav, e.extractor, e.validator, r.ledger, pipeline.WithLogger(e.logger))

	err := r.collate(ctx)

	r.report.Interactions = e.nav.Interactions()
	r.report.FinishedAt = time.Now()
	if err != nil {
		r.report.Aborted = true
		r.report.AbortReason = oneLine(err)
	}
	r.notify(progress.KindFinished)
	e.logger.Info("collation finished",
		"target", target,
		"route", r.report.Route.String(),
		"cells", r.report.Dataset.Cells(),
		"failures", len(r.report.Failures),
		"interactions", r.report.Interactions,
		"aborted", r.report.Aborted,
	)
	return r.report, err
}

func (r *run) collate(ctx context.Context) error {
	roots := make(map[string][]model.Option, len(r.axes))
	counts := make(map[string]int, len(r.axes))
	for _, axis := range r.axes {
		opts, err := r.catalog.Discover(ctx, axis, model.Selection{})
		if err != nil {
			return r.fail(ctx, model.Selection{}, err, 0)
		}
		roots[axis] = opts
		counts[axis] = len(opts)
		r.report.Dataset.Observe(axis, model.Labels(opts)...)
	}

	route, est, err := r.plan(ctx, roots, counts)
	if err != nil {
		return err
	}
	r.report.Route = route
	r.report.Optimized = est != nil
	outer, mid, inner := route[0], route[1], route[2]
	r.logger.Info("route planned",
		"target", r.target,
		"route", route.String(),
		"optimized", est != nil,
		"estimated_choices", planner.Cost(route, counts, est),
	)

	for _, o := range roots[outer] {
		if o.HasCount {
			r.ledger.SetCoarse(model.NewSelection(model.Choice{Axis: outer, Value: o.Label}), o.Count)
		}
	}

	r.report.Planned = counts[outer] * counts[mid]
	r.notify(progress.KindPlanned)

	if err := r.nav.Breakdown(ctx, inner); err != nil {
		return r.fail(ctx, model.Selection{}, err, counts[outer]*counts[mid])
	}

	for i, o := range roots[outer] {
		if err := ctx.Err(); err != nil {
			return err
		}
		prefix := model.NewSelection(model.Choice{Axis: outer, Value: o.Label})
		if !r.allowed(prefix) {
			r.replan(counts[mid], 0)
			continue
		}
		if err := r.walkOuter(ctx, prefix, mid, inner, counts[mid]); err != nil {
			return err
		}
		r.logger.Debug("outer value done", "target", r.target, "value", o.Label, "index", i+1, "of", len(roots[outer]))
	}
	return nil
}

// plan returns the route and, in optimize mode, the estimates it used.
func (r *run) plan(ctx context.Context, roots map[string][]model.Option, counts map[string]int) (model.Route, planner.Estimates, error) {
	if r.route != nil {
		if !r.route.IsPermutationOf(r.axes[:]) {
			return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRoute, r.route)
		}
		return r.route, nil, nil
	}

	var opts []planner.Option
	var est planner.Estimates
	if r.innermost != "" {
		opts = append(opts, planner.WithInnermost(r.innermost))
	}
	if r.optimize {
		var err error
		est, err = planner.Estimate(ctx, r.catalog, r.axes[:], roots, r.sampleLimit)
		switch {
		case isCancel(err):
			return nil, nil, err
		case err != nil:
			r.logger.Warn("branching estimate failed, using value counts", "target", r.target, "error", err)
			est = nil
		default:
			opts = append(opts, planner.WithEstimates(est))
		}
	}
	route, err := planner.Plan(r.axes[:], counts, opts...)
	if err != nil {
		return nil, nil, err
	}
	if !route.IsPermutationOf(r.axes[:]) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidRoute, route)
	}
	return route, est, nil
}

// walkOuter selects one outer value, rediscovers the middle axis under it and
// visits every middle value.
func (r *run) walkOuter(ctx context.Context, prefix model.Selection, mid, inner string, expected int) error {
	outer := prefix.At(0)
	if _, err := r.nav.Select(ctx, model.Selection{}, outer.Axis, outer.Value); err != nil {
		return r.fail(ctx, prefix, err, expected)
	}
	mids, err := r.catalog.Discover(ctx, mid, prefix)
	if err != nil {
		return r.fail(ctx, prefix, err, expected)
	}
	r.report.Dataset.Observe(mid, model.Labels(mids)...)
	r.replan(expected, len(mids))

	for _, m := range mids {
		node := prefix.With(mid, m.Label)
		if m.HasCount {
			r.ledger.SetCoarse(node, m.Count)
		}
		if !r.allowed(node) || (r.seed != nil && r.seed.Visited(node)) {
			r.report.Planned--
			continue
		}
		if err := r.visitNode(ctx, prefix, mid, m.Label, inner); err != nil {
			return err
		}
	}

	if err := r.ledger.Aggregate(prefix, len(mids)); err != nil {
		r.logger.Warn("aggregate cross-check failed", "target", r.target, "error", err)
		r.report.Warn(err.Error())
	}
	return nil
}

// visitNode runs one node, re-visiting on mismatch as configured, and folds
// an accepted result.
func (r *run) visitNode(ctx context.Context, prefix model.Selection, axis, value, inner string) error {
	var v *model.Visit
	tries := 0
	for tries <= r.revisits {
		tries++
		v = model.NewVisit(r.target, prefix, axis, value, inner)
		err := r.visit.Execute(ctx, v)
		if err == nil && v.State == model.StateAccepted {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isCancel(err) {
			return err
		}
		if v.State != model.StateMismatch {
			break
		}
		if tries <= r.revisits {
			r.logger.Info("totals disagree, visiting again",
				"target", r.target,
				"selection", v.Selection().String(),
				"visit", tries,
				"error", err,
			)
		}
	}

	if v.State != model.StateAccepted {
		r.logger.Warn("combination failed",
			"target", r.target,
			"selection", v.Selection().String(),
			"state", v.State,
			"error", v.Err,
		)
		r.report.AddFailure(model.Failure{
			Selection: v.Selection(),
			Kind:      Classify(v.Err),
			Message:   oneLine(v.Err),
			Attempts:  attempts(v.Err, tries),
		})
		r.notify(progress.KindFailed)
		return nil
	}

	if err := r.report.Dataset.Fold(v.Result); err != nil {
		r.logger.Error("dataset fold failed", "target", r.target, "selection", v.Selection().String(), "error", err)
		return err
	}
	r.report.Completed++
	r.notify(progress.KindCompleted)
	return nil
}

// fail records a failure at prefix covering an estimated n nodes. It returns
// the error when the run has to stop instead.
func (r *run) fail(ctx context.Context, prefix model.Selection, err error, n int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isCancel(err) {
		return err
	}
	r.logger.Warn("prefix failed",
		"target", r.target,
		"selection", prefix.String(),
		"error", err,
	)
	r.report.AddFailure(model.Failure{
		Selection: prefix,
		Kind:      Classify(err),
		Message:   oneLine(err),
		Attempts:  attempts(err, 1),
	})
	if n > 1 {
		r.report.Planned -= n - 1
	}
	r.notify(progress.KindFailed)
	return nil
}

// replan adjusts the planned count once the real branching of a prefix is known.
func (r *run) replan(expected, actual int) {
	if expected == actual {
		return
	}
	r.report.Planned += actual - expected
	r.notify(progress.KindPlanned)
}

// allowed reports whether sel lies on a path to a restricted prefix.
func (r *run) allowed(sel model.Selection) bool {
	if len(r.restrict) == 0 {
		return true
	}
	for _, p := range r.restrict {
		if p.Matches(sel) {
			return true
		}
	}
	return false
}

func (r *run) notify(kind progress.Kind) {
	r.reporter.Notify(progress.Event{
		Target:    r.target,
		Kind:      kind,
		Planned:   r.report.Planned,
		Completed: r.report.Completed,
		Failed:    r.report.Failed,
	})
}
