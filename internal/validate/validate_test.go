package validate

import (
	"errors"
	"testing"

	"github.com/nao1215/tabcollate/internal/model"
)

func selection(year, state string) model.Selection {
	return model.NewSelection(model.Choice{Axis: "Year", Value: year}, model.Choice{Axis: "State", Value: state})
}

func scrape(year, state string, total int64, values ...int64) *model.ScrapeResult {
	labels := []string{"Granted", "Denied", "Pending"}
	r := &model.ScrapeResult{Selection: selection(year, state), ColumnAxis: "Status", ReportedTotal: total}
	for i, v := range values {
		r.Cells = append(r.Cells, model.Cell{Label: labels[i], Value: v})
	}
	return r
}

// TestValidate tests the per-result checks.
func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("cells summing to the total are accepted", func(t *testing.T) {
		t.Parallel()

		verdict, err := New().Validate(scrape("2020", "TX", 17, 10, 5, 2), NewLedger())
		if err != nil || verdict != Accepted {
			t.Errorf("got %q, %v; expected accepted", verdict, err)
		}
	})

	t.Run("off-by-one total is a mismatch", func(t *testing.T) {
		t.Parallel()

		verdict, err := New().Validate(scrape("2020", "TX", 18, 10, 5, 2), NewLedger())
		if verdict != Mismatch {
			t.Errorf("got %q, expected mismatch", verdict)
		}
		var mismatch *TotalMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected TotalMismatchError, got %v", err)
		}
		if mismatch.Check != CheckCells || mismatch.Got != 17 || mismatch.Want != 18 {
			t.Errorf("got %+v", mismatch)
		}
	})

	t.Run("advertised count disagreeing is a mismatch", func(t *testing.T) {
		t.Parallel()

		ledger := NewLedger()
		ledger.SetCoarse(selection("2020", "TX"), 20)
		_, err := New().Validate(scrape("2020", "TX", 17, 10, 5, 2), ledger)

		var mismatch *TotalMismatchError
		if !errors.As(err, &mismatch) || mismatch.Check != CheckCoarse {
			t.Fatalf("expected coarse mismatch, got %v", err)
		}
	})

	t.Run("coarse check can be disabled", func(t *testing.T) {
		t.Parallel()

		ledger := NewLedger()
		ledger.SetCoarse(selection("2020", "TX"), 20)
		if _, err := New(WithCoarseCheck(false)).Validate(scrape("2020", "TX", 17, 10, 5, 2), ledger); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("re-visit with another total is a mismatch", func(t *testing.T) {
		t.Parallel()

		ledger := NewLedger()
		ledger.Record(scrape("2020", "TX", 17, 10, 5, 2))
		_, err := New().Validate(scrape("2020", "TX", 16, 10, 4, 2), ledger)

		var mismatch *TotalMismatchError
		if !errors.As(err, &mismatch) || mismatch.Check != CheckPrior {
			t.Fatalf("expected prior mismatch, got %v", err)
		}
	})
}

// TestLedgerAggregate tests the prefix-level cross-check.
func TestLedgerAggregate(t *testing.T) {
	t.Parallel()

	year := model.NewSelection(model.Choice{Axis: "Year", Value: "2020"})
	ledger := NewLedger()
	ledger.SetCoarse(year, 30)
	ledger.Record(scrape("2020", "TX", 17, 10, 5, 2))

	if err := ledger.Aggregate(year, 2); err != nil {
		t.Errorf("incomplete children should skip the check, got %v", err)
	}

	ledger.Record(scrape("2020", "CA", 12, 12))
	err := ledger.Aggregate(year, 2)
	var mismatch *TotalMismatchError
	if !errors.As(err, &mismatch) || mismatch.Got != 29 || mismatch.Want != 30 {
		t.Fatalf("expected aggregate mismatch 29/30, got %v", err)
	}

	ledger.SetCoarse(year, 29)
	if err := ledger.Aggregate(year, 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
