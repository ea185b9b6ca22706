package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/nao1215/tabcollate/internal/model"
)

// Catalog discovers the options of an axis under a chosen prefix.
type Catalog interface {
	Discover(ctx context.Context, axis string, prefix model.Selection) ([]model.Option, error)
}

// AxisDependencyError reports an axis that offered no values where at least
// one is expected. The navigation state is most likely wrong.
type AxisDependencyError struct {
	Axis   string
	Prefix model.Selection
}

func (e *AxisDependencyError) Error() string {
	return fmt.Sprintf("axis %q offers no values at %s", e.Axis, e.Prefix)
}

// Func adapts a function to a Catalog.
type Func func(ctx context.Context, axis string, prefix model.Selection) ([]model.Option, error)

// Discover implements Catalog.
func (f Func) Discover(ctx context.Context, axis string, prefix model.Selection) ([]model.Option, error) {
	return f(ctx, axis, prefix)
}

// Static is a catalog of non-cascading axes with constant option sets.
type Static map[string][]string

// Discover implements Catalog.
func (s Static) Discover(_ context.Context, axis string, _ model.Selection) ([]model.Option, error) {
	labels, ok := s[axis]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAxis, axis)
	}
	out := make([]model.Option, len(labels))
	for i, l := range labels {
		out[i] = model.Option{Label: l}
	}
	return out, nil
}

// Discoverer lists options with a page held at a selection.
// *driver.Driver implements it.
type Discoverer interface {
	Discover(ctx context.Context, at model.Selection, axis string) ([]model.Option, error)
}

// Live discovers options from the page itself.
type Live struct {
	d Discoverer
}

// NewLive creates a catalog reading options from d.
func NewLive(d Discoverer) *Live {
	return &Live{d: d}
}

// Discover implements Catalog.
func (l *Live) Discover(ctx context.Context, axis string, prefix model.Selection) ([]model.Option, error) {
	return l.d.Discover(ctx, prefix, axis)
}

// Checked wraps a Catalog and turns empty option sets into
// *AxisDependencyError. Options excluded by skip, such as an "All"
// placeholder, are dropped first.
type Checked struct {
	inner Catalog
	skip  func(label string) bool
}

// CheckedOption configures a Checked catalog.
type CheckedOption func(*Checked)

// WithSkip drops options whose label satisfies fn.
func WithSkip(fn func(label string) bool) CheckedOption {
	return func(c *Checked) {
		c.skip = fn
	}
}

// NewChecked wraps inner.
func NewChecked(inner Catalog, opts ...CheckedOption) *Checked {
	c := &Checked{inner: inner}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover implements Catalog.
func (c *Checked) Discover(ctx context.Context, axis string, prefix model.Selection) ([]model.Option, error) {
	opts, err := c.inner.Discover(ctx, axis, prefix)
	if err != nil {
		return nil, err
	}
	if c.skip != nil {
		opts = slices.DeleteFunc(slices.Clone(opts), func(o model.Option) bool {
			return c.skip(o.Label)
		})
	}
	opts = dedupe(opts)
	if len(opts) == 0 {
		return nil, &AxisDependencyError{Axis: axis, Prefix: prefix}
	}
	return opts, nil
}

// dedupe drops repeated labels, keeping the first.
func dedupe(opts []model.Option) []model.Option {
	seen := make(map[string]struct{}, len(opts))
	out := opts[:0:0]
	for _, o := range opts {
		if _, dup := seen[o.Label]; dup {
			continue
		}
		seen[o.Label] = struct{}{}
		out = append(out, o)
	}
	return out
}
