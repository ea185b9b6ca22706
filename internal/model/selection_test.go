package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestSelectionWith tests that With never mutates the receiver.
func TestSelectionWith(t *testing.T) {
	t.Parallel()

	t.Run("appends a new axis as innermost", func(t *testing.T) {
		t.Parallel()

		base := NewSelection(Choice{Axis: "Year", Value: "2020"})
		next := base.With("State", "TX")

		if base.Len() != 1 {
			t.Errorf("receiver changed: got len %d, expected 1", base.Len())
		}
		want := []Choice{{Axis: "Year", Value: "2020"}, {Axis: "State", Value: "TX"}}
		if diff := cmp.Diff(want, next.Choices()); diff != "" {
			t.Errorf("choices mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("replaces an existing axis in place", func(t *testing.T) {
		t.Parallel()

		base := NewSelection(Choice{Axis: "Year", Value: "2020"}, Choice{Axis: "State", Value: "TX"})
		next := base.With("Year", "2021")

		if got, _ := base.Value("Year"); got != "2020" {
			t.Errorf("receiver changed: got %q", got)
		}
		if got := next.String(); got != "Year=2021, State=TX" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("siblings from one base do not share storage", func(t *testing.T) {
		t.Parallel()

		base := NewSelection(Choice{Axis: "Year", Value: "2020"})
		a := base.With("State", "TX")
		b := base.With("State", "CA")

		if v, _ := a.Value("State"); v != "TX" {
			t.Errorf("got %q, expected TX", v)
		}
		if v, _ := b.Value("State"); v != "CA" {
			t.Errorf("got %q, expected CA", v)
		}
	})
}

// TestSelectionComparisons tests Equal, CommonPrefix, Matches and Covers.
func TestSelectionComparisons(t *testing.T) {
	t.Parallel()

	y20 := NewSelection(Choice{Axis: "Year", Value: "2020"})
	y20tx := y20.With("State", "TX")
	y20ca := y20.With("State", "CA")
	y21 := NewSelection(Choice{Axis: "Year", Value: "2021"})

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{name: "equal to itself", got: y20tx.Equal(y20tx), want: true},
		{name: "not equal to sibling", got: y20tx.Equal(y20ca), want: false},
		{name: "empty equals zero value", got: NewSelection().Equal(Selection{}), want: true},
		{name: "prefix matches child", got: y20.Matches(y20tx), want: true},
		{name: "different outer value does not match", got: y21.Matches(y20tx), want: false},
		{name: "empty matches everything", got: Selection{}.Matches(y20tx), want: true},
		{name: "prefix covered by child", got: y20.Covers(y20tx), want: true},
		{name: "child not covered by prefix", got: y20tx.Covers(y20), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %v, expected %v", tt.got, tt.want)
			}
		})
	}

	t.Run("common prefix length", func(t *testing.T) {
		t.Parallel()
		if got := y20tx.CommonPrefix(y20ca); got != 1 {
			t.Errorf("got %d, expected 1", got)
		}
		if got := y20tx.CommonPrefix(y21); got != 0 {
			t.Errorf("got %d, expected 0", got)
		}
	})
}

// TestSelectionJSON tests that choice order survives encoding.
func TestSelectionJSON(t *testing.T) {
	t.Parallel()

	sel := NewSelection(Choice{Axis: "Status", Value: "Granted"}, Choice{Axis: "Year", Value: "2020"})
	data, err := json.Marshal(sel)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Selection
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(sel) {
		t.Errorf("got %s, expected %s", got, sel)
	}
	if got.At(0).Axis != "Status" {
		t.Errorf("order lost: %s", got)
	}
}
