package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/tabcollate/internal/model"
)

// DefaultConcurrency is the default number of concurrent browser sessions.
// More than two sessions has been seen to cause failures unrelated to the
// target page.
const DefaultConcurrency = 2

// Runner collates one target within an acquired session.
type Runner interface {
	Run(ctx context.Context, target string) (*model.RunReport, error)
}

// SessionFactory acquires a session for target. The returned release
// function is called exactly once when the target is done.
type SessionFactory func(ctx context.Context, target string) (Runner, func(), error)

// BatchProcessor collates several targets concurrently, one session each.
type BatchProcessor struct {
	factory SessionFactory

	// concurrency is the maximum number of concurrent sessions.
	concurrency int

	logger *slog.Logger

	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent sessions.
// Default is DefaultConcurrency if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory SessionFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
		results:     make([]*model.RunReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Concurrency returns the session ceiling.
func (bp *BatchProcessor) Concurrency() int {
	return bp.concurrency
}

// runOne acquires a session, runs the target and releases the session.
// It always returns a report; failures to start are recorded as an aborted run.
func (bp *BatchProcessor) runOne(ctx context.Context, target string) (*model.RunReport, error) {
	runner, release, err := bp.factory(ctx, target)
	if err != nil {
		report := model.NewRunReport(target, [3]string{})
		report.Aborted = true
		report.AbortReason = err.Error()
		report.FinishedAt = time.Now()
		return report, err
	}
	defer release()

	report, err := runner.Run(ctx, target)
	if report == nil {
		report = model.NewRunReport(target, [3]string{})
		report.Aborted = true
		report.FinishedAt = time.Now()
		if err != nil {
			report.AbortReason = err.Error()
		}
	}
	return report, err
}

// ProcessBatch collates targets, at most concurrency at a time.
//
// A failing target does not stop the others. Reports are returned in input
// order, including partial reports of failed or cancelled targets; a target
// that never started because ctx was cancelled has a nil report. The error
// is non-nil only when ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.results = make([]*model.RunReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Info("collating target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			report, err := bp.runOne(gctx, target)

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("collation failed",
					"target", target,
					"error", err,
				)
				return nil
			}

			bp.logger.Info("collation completed",
				"target", target,
				"cells", report.Dataset.Cells(),
				"failures", len(report.Failures),
			)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	if err == nil {
		err = ctx.Err()
	}
	return bp.results, err
}

// ProcessBatchWithCallback collates targets and calls callback as each one
// finishes. The callback runs on the worker goroutine and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.RunReport, index int, err error),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			report, err := bp.runOne(gctx, target)
			callback(report, i, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
