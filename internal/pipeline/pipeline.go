package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/tabcollate/internal/model"
)

// Step is one stage of a node visit.
type Step interface {
	// Do runs the stage. A step that fails sets the visit's terminal state
	// and returns the error.
	Do(ctx context.Context, visit *model.Visit) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order and stops at the first failure. Node
// stages depend on each other: extract needs the rows read, validate needs
// the extracted result.
type Pipeline struct {
	steps []Step

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps over visit.
//
// Cancellation is checked before each step. The first step error is stored
// in visit.Err and returned.
func (p *Pipeline) Execute(ctx context.Context, visit *model.Visit) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("visit cancelled",
				"step", step.Name(),
				"selection", visit.Selection().String(),
				"reason", ctx.Err(),
			)
			visit.Err = ctx.Err()
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", visit.Target,
			"selection", visit.Selection().String(),
		)

		if err := step.Do(ctx, visit); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"selection", visit.Selection().String(),
				"state", visit.State,
				"error", err,
			)
			visit.Err = err
			return err
		}
	}

	return nil
}
