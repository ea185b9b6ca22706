package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/nao1215/tabcollate/internal/catalog"
	"github.com/nao1215/tabcollate/internal/model"
)

// DefaultSampleLimit is the default number of values sampled per axis when
// estimating conditional branching.
const DefaultSampleLimit = 5

var (
	// ErrNoAxes is returned when there is nothing to plan.
	ErrNoAxes = errors.New("no axes to plan")

	// ErrDuplicateAxis is returned when an axis is declared twice.
	ErrDuplicateAxis = errors.New("duplicate axis")

	// ErrMissingCount is returned when an axis has no value count.
	ErrMissingCount = errors.New("missing value count for axis")

	// ErrUnknownInnermost is returned when the fixed innermost axis is not declared.
	ErrUnknownInnermost = errors.New("fixed innermost axis is not a declared axis")
)

// Pair names a conditional branching factor: the number of Axis values live
// once Given has a value.
type Pair struct {
	Given string
	Axis  string
}

// Estimates maps pairs to their mean conditional branching factor.
type Estimates map[Pair]float64

// Mean returns the mean branching of axis over every other axis in axes.
// It reports false if any pair is missing.
func (e Estimates) Mean(axis string, axes []string) (float64, bool) {
	var sum float64
	n := 0
	for _, given := range axes {
		if given == axis {
			continue
		}
		v, ok := e[Pair{Given: given, Axis: axis}]
		if !ok {
			return 0, false
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

type config struct {
	estimates Estimates
	innermost string
}

// Option configures Plan.
type Option func(*config)

// WithEstimates enables the optimize policy.
func WithEstimates(e Estimates) Option {
	return func(c *config) {
		c.estimates = e
	}
}

// WithInnermost pins axis to the innermost position, for tables that can
// only break down by one axis.
func WithInnermost(axis string) Option {
	return func(c *config) {
		c.innermost = axis
	}
}

// Plan orders axes outermost first.
//
// Axes are sorted ascending by score; ties keep declaration order so a given
// input always yields the same route. The score is the value count, or with
// estimates the mean conditional branching factor.
func Plan(axes []string, counts map[string]int, opts ...Option) (model.Route, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(axes) == 0 {
		return nil, ErrNoAxes
	}
	seen := make(map[string]struct{}, len(axes))
	for _, a := range axes {
		if _, dup := seen[a]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAxis, a)
		}
		seen[a] = struct{}{}
		if _, ok := counts[a]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCount, a)
		}
	}
	if cfg.innermost != "" {
		if _, ok := seen[cfg.innermost]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInnermost, cfg.innermost)
		}
	}

	score := make(map[string]float64, len(axes))
	for _, a := range axes {
		score[a] = float64(counts[a])
	}
	if cfg.estimates != nil {
		optimized := make(map[string]float64, len(axes))
		complete := true
		for _, a := range axes {
			m, ok := cfg.estimates.Mean(a, axes)
			if !ok {
				complete = false
				break
			}
			optimized[a] = m
		}
		if complete {
			score = optimized
		}
	}

	route := make(model.Route, 0, len(axes))
	for _, a := range axes {
		if a != cfg.innermost {
			route = append(route, a)
		}
	}
	sort.SliceStable(route, func(i, j int) bool {
		return score[route[i]] < score[route[j]]
	})
	if cfg.innermost != "" {
		route = append(route, cfg.innermost)
	}
	return route, nil
}

// Cost estimates the number of choices a route needs: every outer value is
// chosen once, and every middle value once per outer value.
// The middle count comes from estimates when present.
func Cost(route model.Route, counts map[string]int, est Estimates) float64 {
	outer := route.Outer()
	if len(outer) == 0 {
		return 0
	}
	total := float64(counts[outer[0]])
	width := total
	for i := 1; i < len(outer); i++ {
		branch := float64(counts[outer[i]])
		if v, ok := est[Pair{Given: outer[i-1], Axis: outer[i]}]; ok {
			branch = v
		}
		width *= branch
		total += width
	}
	return total
}

// Estimate samples conditional branching factors for every ordered pair of
// axes. For each axis it takes up to limit of its values from roots, spread
// evenly, chooses each in turn and counts the options of every other axis.
//
// An axis offering nothing under a sampled value counts as zero branching.
// Any other discovery error aborts the estimate.
func Estimate(ctx context.Context, cat catalog.Catalog, axes []string, roots map[string][]model.Option, limit int) (Estimates, error) {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	est := make(Estimates, len(axes)*(len(axes)-1))
	for _, given := range axes {
		samples := Sample(model.Labels(roots[given]), limit)
		if len(samples) == 0 {
			continue
		}
		sums := make(map[string]int, len(axes))
		for _, v := range samples {
			prefix := model.NewSelection(model.Choice{Axis: given, Value: v})
			for _, axis := range axes {
				if axis == given {
					continue
				}
				opts, err := cat.Discover(ctx, axis, prefix)
				var dep *catalog.AxisDependencyError
				switch {
				case errors.As(err, &dep):
				case err != nil:
					return nil, fmt.Errorf("estimate %s given %s: %w", axis, prefix, err)
				default:
					sums[axis] += len(opts)
				}
			}
		}
		for _, axis := range axes {
			if axis == given {
				continue
			}
			est[Pair{Given: given, Axis: axis}] = float64(sums[axis]) / float64(len(samples))
		}
	}
	return est, nil
}

// Sample picks up to n labels spread evenly across labels, keeping order.
func Sample(labels []string, n int) []string {
	if n <= 0 || len(labels) <= n {
		return slices.Clone(labels)
	}
	out := make([]string, 0, n)
	step := float64(len(labels)-1) / float64(n-1)
	if n == 1 {
		step = 0
	}
	last := -1
	for i := range n {
		idx := int(math.Round(float64(i) * step))
		if idx == last {
			continue
		}
		out = append(out, labels[idx])
		last = idx
	}
	return out
}
