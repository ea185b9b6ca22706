package planner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/tabcollate/internal/catalog"
	"github.com/nao1215/tabcollate/internal/model"
)

// TestPlanBaseline tests the marginal-count policy.
func TestPlanBaseline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		axes   []string
		counts map[string]int
		want   model.Route
	}{
		{
			name:   "ascending by value count",
			axes:   []string{"Status", "Year", "State"},
			counts: map[string]int{"Status": 3, "Year": 10, "State": 50},
			want:   model.Route{"Status", "Year", "State"},
		},
		{
			name:   "ties keep declaration order",
			axes:   []string{"Year", "State", "Status"},
			counts: map[string]int{"Year": 2, "State": 2, "Status": 3},
			want:   model.Route{"Year", "State", "Status"},
		},
		{
			name:   "ties keep declaration order when reversed",
			axes:   []string{"State", "Year", "Status"},
			counts: map[string]int{"Year": 2, "State": 2, "Status": 3},
			want:   model.Route{"State", "Year", "Status"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Plan(tt.axes, tt.counts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("route mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestPlanIsPermutation tests closure over many inputs.
func TestPlanIsPermutation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 200 {
		axes := []string{"A", "B", "C"}
		counts := map[string]int{"A": rng.IntN(5), "B": rng.IntN(5), "C": rng.IntN(5)}
		var opts []Option
		if i%2 == 0 {
			est := Estimates{}
			for _, g := range axes {
				for _, a := range axes {
					if g != a {
						est[Pair{Given: g, Axis: a}] = rng.Float64() * 4
					}
				}
			}
			opts = append(opts, WithEstimates(est))
		}
		if i%3 == 0 {
			opts = append(opts, WithInnermost(axes[rng.IntN(3)]))
		}

		route, err := Plan(axes, counts, opts...)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !route.IsPermutationOf(axes) {
			t.Fatalf("case %d: %v is not a permutation", i, route)
		}
		again, _ := Plan(axes, counts, opts...)
		if diff := cmp.Diff(route, again); diff != "" {
			t.Fatalf("case %d: not reproducible (-first +second):\n%s", i, diff)
		}
	}
}

// TestPlanOptimize tests that conditional branching overrides marginal counts.
func TestPlanOptimize(t *testing.T) {
	t.Parallel()

	axes := []string{"Year", "County", "Status"}
	// Many counties overall, but only a couple live per year or status.
	counts := map[string]int{"Year": 5, "County": 200, "Status": 3}
	est := Estimates{
		{Given: "Year", Axis: "County"}:   2,
		{Given: "Status", Axis: "County"}: 2,
		{Given: "County", Axis: "Year"}:   5,
		{Given: "Status", Axis: "Year"}:   5,
		{Given: "Year", Axis: "Status"}:   3,
		{Given: "County", Axis: "Status"}: 3,
	}

	t.Run("uses conditional estimates", func(t *testing.T) {
		t.Parallel()

		got, err := Plan(axes, counts, WithEstimates(est))
		if err != nil {
			t.Fatal(err)
		}
		want := model.Route{"County", "Status", "Year"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("route mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("falls back to baseline on missing estimates", func(t *testing.T) {
		t.Parallel()

		partial := Estimates{{Given: "Year", Axis: "County"}: 2}
		got, err := Plan(axes, counts, WithEstimates(partial))
		if err != nil {
			t.Fatal(err)
		}
		want := model.Route{"Status", "Year", "County"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("route mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fixed innermost axis wins", func(t *testing.T) {
		t.Parallel()

		got, err := Plan(axes, counts, WithEstimates(est), WithInnermost("Status"))
		if err != nil {
			t.Fatal(err)
		}
		if got.Inner() != "Status" {
			t.Errorf("got %v, expected Status innermost", got)
		}
	})
}

// TestPlanErrors tests input validation.
func TestPlanErrors(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"A": 1, "B": 2}
	tests := []struct {
		name string
		axes []string
		opts []Option
		want error
	}{
		{name: "no axes", axes: nil, want: ErrNoAxes},
		{name: "duplicate", axes: []string{"A", "A"}, want: ErrDuplicateAxis},
		{name: "missing count", axes: []string{"A", "C"}, want: ErrMissingCount},
		{name: "unknown innermost", axes: []string{"A", "B"}, opts: []Option{WithInnermost("Z")}, want: ErrUnknownInnermost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Plan(tt.axes, counts, tt.opts...); !errors.Is(err, tt.want) {
				t.Errorf("got %v, expected %v", err, tt.want)
			}
		})
	}
}

// TestCost tests interaction estimates.
func TestCost(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"Year": 2, "State": 3, "Status": 4}
	if got := Cost(model.Route{"Year", "State", "Status"}, counts, nil); got != 2+2*3 {
		t.Errorf("got %v, expected 8", got)
	}
	est := Estimates{{Given: "Year", Axis: "State"}: 1.5}
	if got := Cost(model.Route{"Year", "State", "Status"}, counts, est); got != 2+2*1.5 {
		t.Errorf("got %v, expected 5", got)
	}
}

// TestEstimate tests sampling conditional branching.
func TestEstimate(t *testing.T) {
	t.Parallel()

	// Each year has its own two counties; statuses are constant.
	cat := catalog.NewChecked(catalog.Func(func(_ context.Context, axis string, prefix model.Selection) ([]model.Option, error) {
		switch axis {
		case "County":
			if y, ok := prefix.Value("Year"); ok {
				return []model.Option{{Label: y + "-north"}, {Label: y + "-south"}}, nil
			}
			var all []model.Option
			for _, y := range []string{"2019", "2020", "2021"} {
				all = append(all, model.Option{Label: y + "-north"}, model.Option{Label: y + "-south"})
			}
			return all, nil
		case "Year":
			if c, ok := prefix.Value("County"); ok {
				return []model.Option{{Label: c[:4]}}, nil
			}
			return []model.Option{{Label: "2019"}, {Label: "2020"}, {Label: "2021"}}, nil
		case "Status":
			return []model.Option{{Label: "Granted"}, {Label: "Denied"}}, nil
		}
		return nil, fmt.Errorf("unexpected axis %s", axis)
	}))

	axes := []string{"Year", "County", "Status"}
	roots := make(map[string][]model.Option, len(axes))
	for _, a := range axes {
		opts, err := cat.Discover(context.Background(), a, model.Selection{})
		if err != nil {
			t.Fatal(err)
		}
		roots[a] = opts
	}

	est, err := Estimate(context.Background(), cat, axes, roots, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := est[Pair{Given: "Year", Axis: "County"}]; got != 2 {
		t.Errorf("County given Year: got %v, expected 2", got)
	}
	if got := est[Pair{Given: "Status", Axis: "County"}]; got != 6 {
		t.Errorf("County given Status: got %v, expected 6", got)
	}
	if got := est[Pair{Given: "County", Axis: "Year"}]; got != 1 {
		t.Errorf("Year given County: got %v, expected 1", got)
	}
}

// TestSample tests even spreading of samples.
func TestSample(t *testing.T) {
	t.Parallel()

	labels := []string{"a", "b", "c", "d", "e"}
	if diff := cmp.Diff([]string{"a", "c", "e"}, Sample(labels, 3)); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(labels, Sample(labels, 10)); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a"}, Sample(labels, 1)); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}
