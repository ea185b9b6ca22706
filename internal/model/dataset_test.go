package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testAxes = [3]string{"Year", "State", "Status"}

func result(year, state string, cells ...Cell) *ScrapeResult {
	return &ScrapeResult{
		Selection:  NewSelection(Choice{Axis: "Year", Value: year}, Choice{Axis: "State", Value: state}),
		ColumnAxis: "Status",
		Cells:      cells,
	}
}

// TestDatasetFold tests folding results into the dataset.
func TestDatasetFold(t *testing.T) {
	t.Parallel()

	t.Run("folds cells under the declared key", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		err := d.Fold(result("2020", "TX",
			Cell{Label: "Granted", Value: 10},
			Cell{Label: "Denied", Value: 5},
			Cell{Label: "Pending", Value: 2},
		))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		row, ok := d.Row(Key{Major: "2020", Minor: "TX"})
		if !ok {
			t.Fatal("expected row (2020, TX)")
		}
		want := map[string]int64{"Granted": 10, "Denied": 5, "Pending": 2}
		if diff := cmp.Diff(want, row); diff != "" {
			t.Errorf("row mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Granted", "Denied", "Pending"}, d.Columns()); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("re-folding an identical result is a no-op", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		r := result("2020", "TX", Cell{Label: "Granted", Value: 10})
		if err := d.Fold(r); err != nil {
			t.Fatalf("first fold: %v", err)
		}
		digest := d.Digest()
		if err := d.Fold(r); err != nil {
			t.Fatalf("second fold: %v", err)
		}
		if d.Len() != 1 || d.Cells() != 1 {
			t.Errorf("got %d keys / %d cells, expected 1 / 1", d.Len(), d.Cells())
		}
		if len(d.Covered()) != 1 {
			t.Errorf("got %d covered visits, expected 1", len(d.Covered()))
		}
		if d.Digest() != digest {
			t.Error("digest changed after identical fold")
		}
	})

	t.Run("conflicting value is a key collision and first writer wins", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		if err := d.Fold(result("2020", "TX", Cell{Label: "Granted", Value: 10})); err != nil {
			t.Fatalf("first fold: %v", err)
		}
		err := d.Fold(result("2020", "TX", Cell{Label: "Pending", Value: 1}, Cell{Label: "Granted", Value: 11}))

		var collision *KeyCollisionError
		if !errors.As(err, &collision) {
			t.Fatalf("expected KeyCollisionError, got %v", err)
		}
		if collision.Existing != 10 || collision.Incoming != 11 {
			t.Errorf("got existing %d incoming %d", collision.Existing, collision.Incoming)
		}
		if v, _ := d.Get("2020", "TX", "Granted"); v != 10 {
			t.Errorf("value overwritten: got %d", v)
		}
		if _, ok := d.Get("2020", "TX", "Pending"); ok {
			t.Error("partial fold: Pending was written")
		}
	})

	t.Run("transposes results read along another route", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		r := &ScrapeResult{
			Selection:  NewSelection(Choice{Axis: "Status", Value: "Granted"}, Choice{Axis: "Year", Value: "2020"}),
			ColumnAxis: "State",
			Cells:      []Cell{{Label: "TX", Value: 10}, {Label: "CA", Value: 3}},
		}
		if err := d.Fold(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, ok := d.Get("2020", "CA", "Granted"); !ok || v != 3 {
			t.Errorf("got %d, %v; expected 3, true", v, ok)
		}
		if !d.IsCovered("2020", "NY", "Granted") {
			t.Error("expected (2020, NY, Granted) to be covered by the visit")
		}
		if d.IsCovered("2020", "TX", "Denied") {
			t.Error("Denied was never read")
		}
	})

	t.Run("visits filling disjoint columns of a key merge", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		byStatus := func(status string, tx, ca int64) *ScrapeResult {
			return &ScrapeResult{
				Selection:  NewSelection(Choice{Axis: "Year", Value: "2020"}, Choice{Axis: "Status", Value: status}),
				ColumnAxis: "State",
				Cells:      []Cell{{Label: "TX", Value: tx}, {Label: "CA", Value: ca}},
			}
		}
		if err := d.Fold(byStatus("Granted", 10, 7)); err != nil {
			t.Fatalf("first fold: %v", err)
		}
		if err := d.Fold(byStatus("Denied", 5, 3)); err != nil {
			t.Fatalf("second fold: %v", err)
		}
		row, _ := d.Row(Key{Major: "2020", Minor: "TX"})
		if diff := cmp.Diff(map[string]int64{"Granted": 10, "Denied": 5}, row); diff != "" {
			t.Errorf("row mismatch (-want +got):\n%s", diff)
		}

		err := d.Fold(byStatus("Denied", 5, 4))
		var collision *KeyCollisionError
		if !errors.As(err, &collision) {
			t.Fatalf("expected KeyCollisionError, got %v", err)
		}
		if collision.Key != (Key{Major: "2020", Minor: "CA"}) || collision.Column != "Denied" {
			t.Errorf("got collision at %s/%s", collision.Key, collision.Column)
		}
	})

	t.Run("rejects results that miss a dataset axis", func(t *testing.T) {
		t.Parallel()

		d := NewDataset(testAxes)
		r := &ScrapeResult{
			Selection:  NewSelection(Choice{Axis: "Year", Value: "2020"}),
			ColumnAxis: "Status",
			Cells:      []Cell{{Label: "Granted", Value: 1}},
		}
		if err := d.Fold(r); !errors.Is(err, ErrIncompleteAssignment) {
			t.Errorf("expected ErrIncompleteAssignment, got %v", err)
		}
	})
}

// TestDatasetDigest tests that the digest ignores fold order.
func TestDatasetDigest(t *testing.T) {
	t.Parallel()

	a := NewDataset(testAxes)
	b := NewDataset(testAxes)
	r1 := result("2020", "TX", Cell{Label: "Granted", Value: 10})
	r2 := result("2021", "CA", Cell{Label: "Denied", Value: 4})

	for _, r := range []*ScrapeResult{r1, r2} {
		if err := a.Fold(r); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range []*ScrapeResult{r2, r1} {
		if err := b.Fold(r); err != nil {
			t.Fatal(err)
		}
	}
	if a.Digest() != b.Digest() {
		t.Error("digest depends on fold order")
	}

	c := NewDataset(testAxes)
	if err := c.Fold(result("2020", "TX", Cell{Label: "Granted", Value: 11})); err != nil {
		t.Fatal(err)
	}
	if c.Digest() == a.Digest() {
		t.Error("different data produced the same digest")
	}
}

// TestDatasetJSONRestore tests that a stored dataset keeps cells and coverage.
func TestDatasetJSONRestore(t *testing.T) {
	t.Parallel()

	d := NewDataset(testAxes)
	d.Observe("State", "TX", "CA")
	if err := d.Fold(result("2020", "TX", Cell{Label: "Granted", Value: 10})); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Dataset
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Digest() != d.Digest() {
		t.Error("digest changed after restore")
	}
	if diff := cmp.Diff([]string{"TX", "CA"}, got.Labels("State")); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if !got.IsCovered("2020", "TX", "Denied") {
		t.Error("coverage lost on restore")
	}
}
