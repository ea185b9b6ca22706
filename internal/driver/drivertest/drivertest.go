// Package drivertest provides a scripted in-memory Page for tests.
//
// A Page simulates a cascading-dropdown layout: one control per axis whose
// options may depend on the other controls, a table breakdown control and a
// result table with a trailing total row. Faults can be injected per
// operation to exercise retry and failure paths.
package drivertest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/tabcollate/internal/driver"
	"github.com/nao1215/tabcollate/internal/model"
)

// Fault fails matching calls.
type Fault struct {
	// Op is "options", "choose", "breakdown", "snapshot", "table" or "reset".
	Op string

	// Axis and Value narrow the match; empty matches anything.
	Axis  string
	Value string

	// When narrows table faults to one page state, keyed by StateKey.
	When string

	// Times is how many matching calls fail; negative fails forever.
	Times int

	// Err is returned; driver.ErrStaleReference when nil.
	Err error
}

// Page is a fake cascading-dropdown page.
type Page struct {
	// Values lists the options of each axis in display order.
	Values map[string][]string

	// Filter, when set, narrows the options of axis given the current state.
	Filter func(axis, value string, state map[string]string) bool

	// Count returns the figure of one full combination; false omits the row.
	Count func(combo map[string]string) (int64, bool)

	// ShowCounts adds aggregate counts to options.
	ShowCounts bool

	// FixedBreakdown, when set, is the only breakdown the table supports.
	FixedBreakdown string

	// TotalOverride replaces the reported total for page states keyed by StateKey.
	TotalOverride map[string]int64

	// NoTotal omits the total row.
	NoTotal bool

	// Churn makes Snapshot change on this many calls after every choice.
	Churn int

	// Faults are consumed in order.
	Faults []*Fault

	mu        sync.Mutex
	state     map[string]string
	breakdown string
	churn     int
	version   int

	// Calls counts calls per operation.
	Calls map[string]int
}

// New creates a Page with the given option values and data.
func New(values map[string][]string, count func(map[string]string) (int64, bool)) *Page {
	return &Page{
		Values: values,
		Count:  count,
	}
}

// StateKey returns a canonical key for a page state such as "State=TX,Year=2020".
func StateKey(state map[string]string) string {
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + state[k]
	}
	return strings.Join(parts, ",")
}

// State returns a copy of the current control state.
func (p *Page) State() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.state))
	for k, v := range p.state {
		out[k] = v
	}
	return out
}

// CallCount returns how many times op was called.
func (p *Page) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls[op]
}

func (p *Page) enter(op, axis, value string) error {
	if p.Calls == nil {
		p.Calls = make(map[string]int)
	}
	p.Calls[op]++
	for _, f := range p.Faults {
		if f.Op != op || f.Times == 0 {
			continue
		}
		if (f.Axis != "" && f.Axis != axis) || (f.Value != "" && f.Value != value) {
			continue
		}
		if f.When != "" && f.When != StateKey(p.state) {
			continue
		}
		if f.Times > 0 {
			f.Times--
		}
		if f.Err != nil {
			return f.Err
		}
		return fmt.Errorf("%s %s=%s: %w", op, axis, value, driver.ErrStaleReference)
	}
	return nil
}

func (p *Page) options(axis string, state map[string]string) []string {
	var out []string
	for _, v := range p.Values[axis] {
		if p.Filter == nil || p.Filter(axis, v, state) {
			out = append(out, v)
		}
	}
	return out
}

// sum adds up Count over every combination consistent with state.
func (p *Page) sum(state map[string]string) int64 {
	axes := make([]string, 0, len(p.Values))
	for a := range p.Values {
		axes = append(axes, a)
	}
	sort.Strings(axes)
	var total int64
	var walk func(i int, combo map[string]string)
	walk = func(i int, combo map[string]string) {
		if i == len(axes) {
			if v, ok := p.Count(combo); ok {
				total += v
			}
			return
		}
		a := axes[i]
		if v, ok := state[a]; ok {
			combo[a] = v
			walk(i+1, combo)
			delete(combo, a)
			return
		}
		for _, v := range p.options(a, combo) {
			combo[a] = v
			walk(i+1, combo)
		}
		delete(combo, a)
	}
	walk(0, make(map[string]string))
	return total
}

// Options implements driver.Page.
func (p *Page) Options(_ context.Context, axis string) ([]model.Option, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("options", axis, ""); err != nil {
		return nil, err
	}
	if _, ok := p.Values[axis]; !ok {
		return nil, fmt.Errorf("%w: %s", driver.ErrUnknownControl, axis)
	}
	labels := p.options(axis, p.state)
	out := make([]model.Option, len(labels))
	for i, l := range labels {
		out[i] = model.Option{Label: l}
		if p.ShowCounts {
			s := clone(p.state)
			s[axis] = l
			out[i].Count = p.sum(s)
			out[i].HasCount = true
		}
	}
	return out, nil
}

// Choose implements driver.Page. Controls whose value is no longer offered
// fall back to unset, the way cascading dropdowns do.
func (p *Page) Choose(_ context.Context, axis, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("choose", axis, value); err != nil {
		return err
	}
	if !slices.Contains(p.options(axis, p.state), value) {
		return fmt.Errorf("%w: %s=%s", driver.ErrOptionNotFound, axis, value)
	}
	if p.state == nil {
		p.state = make(map[string]string)
	}
	p.state[axis] = value
	for a, v := range p.state {
		if a != axis && !slices.Contains(p.options(a, p.state), v) {
			delete(p.state, a)
		}
	}
	p.touch()
	return nil
}

// Breakdown implements driver.Page.
func (p *Page) Breakdown(_ context.Context, axis string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("breakdown", axis, ""); err != nil {
		return err
	}
	if p.FixedBreakdown != "" && axis != p.FixedBreakdown {
		return fmt.Errorf("%w: table breaks down by %s only", driver.ErrUnknownControl, p.FixedBreakdown)
	}
	p.breakdown = axis
	p.touch()
	return nil
}

// Snapshot implements driver.Page.
func (p *Page) Snapshot(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("snapshot", "", ""); err != nil {
		return "", err
	}
	if p.churn > 0 {
		p.churn--
		p.version++
	}
	return StateKey(p.state) + "|" + p.breakdown + "|" + strconv.Itoa(p.version), nil
}

// Table implements driver.Page.
func (p *Page) Table(_ context.Context) ([]model.RawRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("table", "", ""); err != nil {
		return nil, err
	}
	if p.breakdown == "" {
		return nil, fmt.Errorf("%w: no breakdown chosen", driver.ErrNotReady)
	}
	rows := []model.RawRow{{Cells: []string{p.breakdown, "Count"}, Header: true}}
	var total int64
	for _, v := range p.options(p.breakdown, p.state) {
		s := clone(p.state)
		s[p.breakdown] = v
		n := p.sum(s)
		if n == 0 {
			continue
		}
		total += n
		rows = append(rows, model.RawRow{Cells: []string{v, group(n)}})
	}
	if override, ok := p.TotalOverride[StateKey(p.state)]; ok {
		total = override
	}
	if !p.NoTotal {
		rows = append(rows, model.RawRow{Cells: []string{"Total", group(total)}})
	}
	return rows, nil
}

// Reset implements driver.Page.
func (p *Page) Reset(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("reset", "", ""); err != nil {
		return err
	}
	p.state = nil
	p.breakdown = ""
	p.touch()
	return nil
}

func (p *Page) touch() {
	p.version++
	p.churn = p.Churn
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// group formats n with thousands separators, as result tables often do.
func group(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// Grid returns a Count function backed by a map keyed by StateKey of the
// full combination.
func Grid(data map[string]int64) func(map[string]string) (int64, bool) {
	return func(combo map[string]string) (int64, bool) {
		v, ok := data[StateKey(combo)]
		return v, ok
	}
}
