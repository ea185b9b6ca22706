package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/tabcollate/internal/driver"
	"github.com/nao1215/tabcollate/internal/extract"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/validate"
)

// fakeNavigator serves a fixed table and records calls.
type fakeNavigator struct {
	rows      []model.RawRow
	chooseErr error
	waitErr   error
	stable    model.Selection
	calls     []string
}

func (f *fakeNavigator) Choose(_ context.Context, at model.Selection, axis, value string) error {
	f.calls = append(f.calls, "choose")
	if f.chooseErr != nil {
		return f.chooseErr
	}
	f.stable = at.With(axis, value)
	return nil
}

func (f *fakeNavigator) WaitStable(context.Context) (model.Selection, error) {
	f.calls = append(f.calls, "wait")
	return f.stable, f.waitErr
}

func (f *fakeNavigator) ReadVisibleTable(_ context.Context, at model.Selection) ([]model.RawRow, error) {
	f.calls = append(f.calls, "read")
	if !at.Equal(f.stable) {
		return nil, driver.ErrUnstableRead
	}
	return f.rows, nil
}

func table(total string) []model.RawRow {
	return []model.RawRow{
		{Cells: []string{"Status", "Count"}, Header: true},
		{Cells: []string{"Granted", "10"}},
		{Cells: []string{"Denied", "5"}},
		{Cells: []string{"Pending", "2"}},
		{Cells: []string{"Total", total}},
	}
}

// TestVisitPipeline tests the node state machine end to end.
func TestVisitPipeline(t *testing.T) {
	t.Parallel()

	t.Run("consistent table is accepted", func(t *testing.T) {
		t.Parallel()

		nav := &fakeNavigator{rows: table("17")}
		ledger := validate.NewLedger()
		p := NewVisitPipeline(nav, extract.New(), validate.New(), ledger)

		visit := newVisit()
		if err := p.Execute(context.Background(), visit); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if visit.State != model.StateAccepted {
			t.Errorf("got state %q, expected accepted", visit.State)
		}
		if visit.Result == nil || visit.Result.ReportedTotal != 17 || len(visit.Result.Cells) != 3 {
			t.Fatalf("unexpected result %+v", visit.Result)
		}
		if visit.Rows != nil {
			t.Error("raw rows should be dropped after extraction")
		}
		if total, ok := ledger.Prior(visit.Selection()); !ok || total != 17 {
			t.Errorf("ledger not updated: %d, %v", total, ok)
		}
		want := []string{"choose", "wait", "read"}
		if len(nav.calls) != len(want) {
			t.Errorf("got calls %v, expected %v", nav.calls, want)
		}
	})

	t.Run("mismatched total is discarded", func(t *testing.T) {
		t.Parallel()

		nav := &fakeNavigator{rows: table("18")}
		p := NewVisitPipeline(nav, extract.New(), validate.New(), validate.NewLedger())

		visit := newVisit()
		err := p.Execute(context.Background(), visit)

		var mismatch *validate.TotalMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected TotalMismatchError, got %v", err)
		}
		if visit.State != model.StateMismatch {
			t.Errorf("got state %q, expected mismatch", visit.State)
		}
		if visit.Result != nil {
			t.Error("rejected result should be discarded")
		}
	})

	t.Run("garbled table fails extraction", func(t *testing.T) {
		t.Parallel()

		nav := &fakeNavigator{rows: []model.RawRow{{Cells: []string{"Granted", "10"}}, {Cells: []string{"Denied", "??"}}}}
		p := NewVisitPipeline(nav, extract.New(), validate.New(), validate.NewLedger())

		visit := newVisit()
		err := p.Execute(context.Background(), visit)

		var extractErr *extract.ExtractionError
		if !errors.As(err, &extractErr) {
			t.Fatalf("expected ExtractionError, got %v", err)
		}
		if visit.State != model.StateExtractionFailed {
			t.Errorf("got state %q, expected extraction_failed", visit.State)
		}
	})

	t.Run("navigation failure stops before reading", func(t *testing.T) {
		t.Parallel()

		nav := &fakeNavigator{chooseErr: &driver.NavigationError{Op: "select", Attempts: 3, Err: driver.ErrStaleReference}}
		p := NewVisitPipeline(nav, extract.New(), validate.New(), validate.NewLedger())

		visit := newVisit()
		err := p.Execute(context.Background(), visit)

		var nav2 *driver.NavigationError
		if !errors.As(err, &nav2) {
			t.Fatalf("expected NavigationError, got %v", err)
		}
		if visit.State != model.StateNavigationFailed {
			t.Errorf("got state %q, expected navigation_failed", visit.State)
		}
		if len(nav.calls) != 1 {
			t.Errorf("got calls %v, expected only choose", nav.calls)
		}
	})

	t.Run("cancelled wait leaves the node unfinished", func(t *testing.T) {
		t.Parallel()

		nav := &fakeNavigator{rows: table("17"), waitErr: context.Canceled}
		p := NewVisitPipeline(nav, extract.New(), validate.New(), validate.NewLedger())

		visit := newVisit()
		if err := p.Execute(context.Background(), visit); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if visit.State != model.StateWaiting {
			t.Errorf("got state %q, expected waiting", visit.State)
		}
	})
}

// TestVisitPipelineStepNames tests the node step order.
func TestVisitPipelineStepNames(t *testing.T) {
	t.Parallel()

	p := NewVisitPipeline(&fakeNavigator{}, extract.New(), validate.New(), nil)
	want := []string{"select", "wait", "read", "extract", "validate"}
	got := make([]string, len(p.steps))
	for i, step := range p.steps {
		got[i] = step.Name()
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: got %q, expected %q", i, got[i], want[i])
		}
	}
}
