package model

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Key is the two-level row index of a Dataset: the values of the first and
// second collated axes.
type Key struct {
	Major string `json:"major"`
	Minor string `json:"minor"`
}

// String returns "Major / Minor".
func (k Key) String() string {
	return k.Major + " / " + k.Minor
}

// KeyCollisionError reports that a cell was written twice with conflicting
// values. It signals a planning or discovery defect and aborts the run.
type KeyCollisionError struct {
	Key      Key
	Column   string
	Existing int64
	Incoming int64
	Visit    Selection
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("key collision at (%s) column %q: have %d, visit %s wrote %d",
		e.Key, e.Column, e.Existing, e.Visit, e.Incoming)
}

// Dataset is the assembled cross-tabulation: (axes[0], axes[1]) -> axes[2] -> count.
//
// The key roles follow the declared axis order, not the traversal route, so
// the same request yields the same shape whichever route the planner picks.
// A Dataset only grows: cells are never edited or removed once folded.
// It is not safe for concurrent use; each run owns one.
type Dataset struct {
	axes    [3]string
	keys    []Key
	rows    map[Key]map[string]int64
	labels  map[string][]string
	seen    map[string]map[string]struct{}
	covered []Selection
}

// NewDataset creates an empty dataset for the three axes in declared order.
func NewDataset(axes [3]string) *Dataset {
	d := &Dataset{
		axes:   axes,
		rows:   make(map[Key]map[string]int64),
		labels: make(map[string][]string, len(axes)),
		seen:   make(map[string]map[string]struct{}, len(axes)),
	}
	for _, a := range axes {
		d.seen[a] = make(map[string]struct{})
	}
	return d
}

// Axes returns the axes in declared order: major index, minor index, column.
func (d *Dataset) Axes() [3]string {
	return d.axes
}

// Observe records labels discovered for axis, keeping first-seen order.
// Observed labels span the full index when rendering, including labels whose
// combinations were never collected.
func (d *Dataset) Observe(axis string, labels ...string) {
	seen, ok := d.seen[axis]
	if !ok {
		return
	}
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		d.labels[axis] = append(d.labels[axis], l)
	}
}

// Labels returns the observed labels of axis in discovery order.
func (d *Dataset) Labels(axis string) []string {
	return slices.Clone(d.labels[axis])
}

type placement struct {
	key    Key
	column string
	value  int64
}

// Fold merges one validated result into the dataset.
//
// The result's selection plus its column axis must assign every dataset axis.
// Fold is all or nothing: on any error no cell of the result is written.
// Folding an identical result twice is a no-op; folding a conflicting value
// for an existing cell returns a *KeyCollisionError and keeps the first value.
// Collisions are per cell: results that add other columns to an existing key
// merge into its row, since a route whose inner axis is not the column axis
// fills each row from several visits.
func (d *Dataset) Fold(r *ScrapeResult) error {
	if r == nil {
		return nil
	}
	places := make([]placement, 0, len(r.Cells))
	batch := make(map[Key]map[string]int64, len(r.Cells))
	for _, c := range r.Cells {
		assign := func(axis string) (string, bool) {
			if axis == r.ColumnAxis {
				return c.Label, true
			}
			return r.Selection.Value(axis)
		}
		major, ok1 := assign(d.axes[0])
		minor, ok2 := assign(d.axes[1])
		column, ok3 := assign(d.axes[2])
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("%w: %s with column axis %q", ErrIncompleteAssignment, r.Selection, r.ColumnAxis)
		}
		key := Key{Major: major, Minor: minor}
		if have, ok := d.rows[key][column]; ok && have != c.Value {
			return &KeyCollisionError{Key: key, Column: column, Existing: have, Incoming: c.Value, Visit: r.Selection}
		}
		if have, ok := batch[key][column]; ok && have != c.Value {
			return &KeyCollisionError{Key: key, Column: column, Existing: have, Incoming: c.Value, Visit: r.Selection}
		}
		if batch[key] == nil {
			batch[key] = make(map[string]int64)
		}
		batch[key][column] = c.Value
		places = append(places, placement{key: key, column: column, value: c.Value})
	}

	for _, p := range places {
		row, ok := d.rows[p.key]
		if !ok {
			row = make(map[string]int64)
			d.rows[p.key] = row
			d.keys = append(d.keys, p.key)
		}
		row[p.column] = p.value
		d.Observe(d.axes[0], p.key.Major)
		d.Observe(d.axes[1], p.key.Minor)
		d.Observe(d.axes[2], p.column)
	}
	d.cover(r.Selection)
	return nil
}

func (d *Dataset) cover(sel Selection) {
	for _, c := range d.covered {
		if c.Equal(sel) {
			return
		}
	}
	d.covered = append(d.covered, sel)
	for _, ch := range sel.Choices() {
		d.Observe(ch.Axis, ch.Value)
	}
}

// Get returns the value of one cell.
func (d *Dataset) Get(major, minor, column string) (int64, bool) {
	v, ok := d.rows[Key{Major: major, Minor: minor}][column]
	return v, ok
}

// Row returns a copy of the cells of one key.
func (d *Dataset) Row(k Key) (map[string]int64, bool) {
	row, ok := d.rows[k]
	if !ok {
		return nil, false
	}
	out := make(map[string]int64, len(row))
	for c, v := range row {
		out[c] = v
	}
	return out, true
}

// Keys returns the keys in the order they were first written.
func (d *Dataset) Keys() []Key {
	return slices.Clone(d.keys)
}

// Columns returns the observed column labels in discovery order.
func (d *Dataset) Columns() []string {
	return d.Labels(d.axes[2])
}

// Len returns the number of keys.
func (d *Dataset) Len() int {
	return len(d.keys)
}

// Cells returns the number of stored cells.
func (d *Dataset) Cells() int {
	n := 0
	for _, row := range d.rows {
		n += len(row)
	}
	return n
}

// Covered returns the selections of every folded visit.
func (d *Dataset) Covered() []Selection {
	return slices.Clone(d.covered)
}

// Visited reports whether a visit choosing the same values as sel, in any
// order, was folded.
func (d *Dataset) Visited(sel Selection) bool {
	for _, c := range d.covered {
		if c.Len() == sel.Len() && c.Covers(sel) {
			return true
		}
	}
	return false
}

// IsCovered reports whether an accepted visit read the table that would
// have contained the cell. A covered cell that is absent is a legitimate
// empty result.
func (d *Dataset) IsCovered(major, minor, column string) bool {
	cell := NewSelection(
		Choice{Axis: d.axes[0], Value: major},
		Choice{Axis: d.axes[1], Value: minor},
		Choice{Axis: d.axes[2], Value: column},
	)
	for _, sel := range d.covered {
		if sel.Covers(cell) {
			return true
		}
	}
	return false
}

// Nested returns the dataset as major -> minor -> column -> value.
func (d *Dataset) Nested() map[string]map[string]map[string]int64 {
	out := make(map[string]map[string]map[string]int64)
	for _, k := range d.keys {
		if out[k.Major] == nil {
			out[k.Major] = make(map[string]map[string]int64)
		}
		row, _ := d.Row(k)
		out[k.Major][k.Minor] = row
	}
	return out
}

// Digest returns a SHA3-256 hex digest of the stored cells.
// It does not depend on fold order, so two runs that collected the same
// numbers have the same digest.
func (d *Dataset) Digest() string {
	keys := d.Keys()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Major != keys[j].Major {
			return keys[i].Major < keys[j].Major
		}
		return keys[i].Minor < keys[j].Minor
	})
	h := sha3.New256()
	var buf [8]byte
	for _, a := range d.axes {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	for _, k := range keys {
		row := d.rows[k]
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			h.Write([]byte(k.Major))
			h.Write([]byte{0x1f})
			h.Write([]byte(k.Minor))
			h.Write([]byte{0x1f})
			h.Write([]byte(c))
			h.Write([]byte{0x1e})
			binary.BigEndian.PutUint64(buf[:], uint64(row[c]))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type datasetRow struct {
	Key
	Cells map[string]int64 `json:"cells"`
}

type datasetJSON struct {
	Axes    [3]string           `json:"axes"`
	Labels  map[string][]string `json:"labels"`
	Rows    []datasetRow        `json:"rows"`
	Covered []Selection         `json:"covered"`
}

// MarshalJSON encodes the dataset with its coverage so it can be restored.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	out := datasetJSON{
		Axes:    d.axes,
		Labels:  d.labels,
		Rows:    make([]datasetRow, 0, len(d.keys)),
		Covered: d.covered,
	}
	if out.Covered == nil {
		out.Covered = []Selection{}
	}
	for _, k := range d.keys {
		out.Rows = append(out.Rows, datasetRow{Key: k, Cells: d.rows[k]})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a dataset written by MarshalJSON.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var in datasetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	restored := NewDataset(in.Axes)
	for _, a := range in.Axes {
		restored.Observe(a, in.Labels[a]...)
	}
	for _, r := range in.Rows {
		if _, dup := restored.rows[r.Key]; dup {
			return fmt.Errorf("%w: duplicate key (%s)", ErrCorruptDataset, r.Key)
		}
		row := make(map[string]int64, len(r.Cells))
		for c, v := range r.Cells {
			row[c] = v
		}
		restored.rows[r.Key] = row
		restored.keys = append(restored.keys, r.Key)
	}
	restored.covered = append(restored.covered, in.Covered...)
	*d = *restored
	return nil
}
