package model

import (
	"cmp"
	"slices"
)

// CellChange is one cell that differs between two datasets.
type CellChange struct {
	Key    Key    `json:"key"`
	Column string `json:"column"`

	// Old is the value in the older dataset. Zero for added cells.
	Old int64 `json:"old"`

	// New is the value in the newer dataset. Zero for removed cells.
	New int64 `json:"new"`
}

// Delta returns New - Old.
func (c CellChange) Delta() int64 {
	return c.New - c.Old
}

// Comparison lists the cell differences between two datasets.
type Comparison struct {
	OldDigest string `json:"old_digest"`
	NewDigest string `json:"new_digest"`

	Changed []CellChange `json:"changed"`
	Added   []CellChange `json:"added"`
	Removed []CellChange `json:"removed"`
}

// Identical reports whether both datasets hold the same cells.
func (c *Comparison) Identical() bool {
	return c.OldDigest == c.NewDigest
}

// Compare diffs two datasets cell by cell. Changes are sorted by key and
// column. Datasets with equal digests are not walked.
func Compare(older, newer *Dataset) *Comparison {
	c := &Comparison{
		OldDigest: older.Digest(),
		NewDigest: newer.Digest(),
		Changed:   []CellChange{},
		Added:     []CellChange{},
		Removed:   []CellChange{},
	}
	if c.Identical() {
		return c
	}

	for _, k := range older.Keys() {
		oldRow := older.rows[k]
		newRow := newer.rows[k]
		for col, ov := range oldRow {
			nv, ok := newRow[col]
			switch {
			case !ok:
				c.Removed = append(c.Removed, CellChange{Key: k, Column: col, Old: ov})
			case nv != ov:
				c.Changed = append(c.Changed, CellChange{Key: k, Column: col, Old: ov, New: nv})
			}
		}
	}
	for _, k := range newer.Keys() {
		oldRow := older.rows[k]
		for col, nv := range newer.rows[k] {
			if _, ok := oldRow[col]; !ok {
				c.Added = append(c.Added, CellChange{Key: k, Column: col, New: nv})
			}
		}
	}
	for _, list := range [][]CellChange{c.Changed, c.Added, c.Removed} {
		slices.SortFunc(list, compareChange)
	}
	return c
}

func compareChange(a, b CellChange) int {
	return cmp.Or(
		cmp.Compare(a.Key.Major, b.Key.Major),
		cmp.Compare(a.Key.Minor, b.Key.Minor),
		cmp.Compare(a.Column, b.Column),
	)
}
