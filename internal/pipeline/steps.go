package pipeline

import (
	"context"
	"errors"

	"github.com/nao1215/tabcollate/internal/extract"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/validate"
)

// Navigator is the part of the driver the visit steps use.
// *driver.Driver implements it.
type Navigator interface {
	Choose(ctx context.Context, at model.Selection, axis, value string) error
	WaitStable(ctx context.Context) (model.Selection, error)
	ReadVisibleTable(ctx context.Context, at model.Selection) ([]model.RawRow, error)
}

// failed sets the visit's terminal state unless err is a cancellation,
// which leaves the node unfinished.
func failed(v *model.Visit, state model.VisitState, err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		v.State = state
	}
	return err
}

// SelectStep makes the node's choice on the page.
type SelectStep struct {
	nav Navigator
}

// NewSelectStep creates a SelectStep.
func NewSelectStep(nav Navigator) *SelectStep {
	return &SelectStep{nav: nav}
}

// Name returns the step name.
func (s *SelectStep) Name() string {
	return "select"
}

// Do executes the step.
func (s *SelectStep) Do(ctx context.Context, v *model.Visit) error {
	v.State = model.StateSelecting
	if err := s.nav.Choose(ctx, v.From, v.Axis, v.Value); err != nil {
		return failed(v, model.StateNavigationFailed, err)
	}
	return nil
}

// WaitStep blocks until the page settles after the choice.
type WaitStep struct {
	nav Navigator
}

// NewWaitStep creates a WaitStep.
func NewWaitStep(nav Navigator) *WaitStep {
	return &WaitStep{nav: nav}
}

// Name returns the step name.
func (s *WaitStep) Name() string {
	return "wait"
}

// Do executes the step.
func (s *WaitStep) Do(ctx context.Context, v *model.Visit) error {
	v.State = model.StateWaiting
	reached, err := s.nav.WaitStable(ctx)
	if err != nil {
		return failed(v, model.StateNavigationFailed, err)
	}
	v.Reached = reached
	return nil
}

// ReadStep reads the raw result table at the reached selection.
type ReadStep struct {
	nav Navigator
}

// NewReadStep creates a ReadStep.
func NewReadStep(nav Navigator) *ReadStep {
	return &ReadStep{nav: nav}
}

// Name returns the step name.
func (s *ReadStep) Name() string {
	return "read"
}

// Do executes the step.
func (s *ReadStep) Do(ctx context.Context, v *model.Visit) error {
	v.State = model.StateReading
	rows, err := s.nav.ReadVisibleTable(ctx, v.Selection())
	if err != nil {
		return failed(v, model.StateNavigationFailed, err)
	}
	v.Rows = rows
	return nil
}

// ExtractStep parses the raw table into a ScrapeResult.
type ExtractStep struct {
	extractor *extract.Extractor
}

// NewExtractStep creates an ExtractStep.
func NewExtractStep(x *extract.Extractor) *ExtractStep {
	return &ExtractStep{extractor: x}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the step. The raw rows are dropped either way.
func (s *ExtractStep) Do(_ context.Context, v *model.Visit) error {
	v.State = model.StateExtracting
	rows := v.Rows
	v.Rows = nil
	res, err := s.extractor.Extract(rows)
	if err != nil {
		return failed(v, model.StateExtractionFailed, err)
	}
	v.Result = &model.ScrapeResult{
		Selection:     v.Reached,
		ColumnAxis:    v.ColumnAxis,
		Cells:         res.Cells,
		ReportedTotal: res.ReportedTotal,
		TotalSource:   res.Source,
	}
	return nil
}

// ValidateStep checks the result and records accepted totals in the ledger.
type ValidateStep struct {
	validator *validate.Validator
	ledger    *validate.Ledger
}

// NewValidateStep creates a ValidateStep.
func NewValidateStep(val *validate.Validator, ledger *validate.Ledger) *ValidateStep {
	return &ValidateStep{validator: val, ledger: ledger}
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do executes the step. A rejected result is discarded.
func (s *ValidateStep) Do(_ context.Context, v *model.Visit) error {
	v.State = model.StateValidating
	verdict, err := s.validator.Validate(v.Result, s.ledger)
	if verdict != validate.Accepted {
		v.Result = nil
		return failed(v, model.StateMismatch, err)
	}
	if s.ledger != nil {
		s.ledger.Record(v.Result)
	}
	v.State = model.StateAccepted
	return nil
}

// NewVisitPipeline builds the Select, Wait, Read, Extract and Validate
// pipeline for one traversal node.
func NewVisitPipeline(nav Navigator, x *extract.Extractor, val *validate.Validator, ledger *validate.Ledger, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewSelectStep(nav),
		NewWaitStep(nav),
		NewReadStep(nav),
		NewExtractStep(x),
		NewValidateStep(val, ledger),
	)
	return p
}
