package report

import (
	"slices"
	"strconv"

	"github.com/nao1215/tabcollate/internal/model"
)

// GridCell is one rendered dataset cell.
type GridCell struct {
	Value int64           `json:"value"`
	State model.CellState `json:"state"`
}

// Known reports whether the cell has a number to show: either it was
// collected, or an accepted visit proved it empty.
func (c GridCell) Known() bool {
	return c.State == model.CellPresent || c.State == model.CellEmpty
}

// String renders known cells as numbers and unknown ones as "".
func (c GridCell) String() string {
	if !c.Known() {
		return ""
	}
	return strconv.FormatInt(c.Value, 10)
}

// GridRow is one key of the cleaned dataset.
type GridRow struct {
	Key   model.Key  `json:"key"`
	Cells []GridCell `json:"cells"`

	// Total is the row sum. It is only set when every cell is known.
	Total    int64 `json:"total"`
	HasTotal bool  `json:"has_total"`
}

// Grid is the dataset laid out for output: every combination of the
// observed index labels as a row, sorted, and every observed column
// label, sorted. A cell that an accepted visit covered but did not list is 0.
// A cell nothing covered stays empty so it cannot be mistaken for a zero.
type Grid struct {
	Axes    [3]string `json:"axes"`
	Columns []string  `json:"columns"`
	Rows    []GridRow `json:"rows"`
}

// NewGrid cleans the dataset of a run.
func NewGrid(r *model.RunReport) *Grid {
	d := r.Dataset
	axes := d.Axes()
	majors := sorted(d.Labels(axes[0]))
	minors := sorted(d.Labels(axes[1]))
	g := &Grid{Axes: axes, Columns: sorted(d.Columns())}

	for _, major := range majors {
		for _, minor := range minors {
			row := GridRow{
				Key:      model.Key{Major: major, Minor: minor},
				Cells:    make([]GridCell, len(g.Columns)),
				HasTotal: len(g.Columns) > 0,
			}
			for i, col := range g.Columns {
				cell := GridCell{State: r.CellState(major, minor, col)}
				if cell.State == model.CellPresent {
					cell.Value, _ = d.Get(major, minor, col)
				}
				row.Cells[i] = cell
				if cell.Known() {
					row.Total += cell.Value
				} else {
					row.HasTotal = false
				}
			}
			if !row.HasTotal {
				row.Total = 0
			}
			g.Rows = append(g.Rows, row)
		}
	}
	return g
}

// ColumnTotals sums each column over its known cells.
func (g *Grid) ColumnTotals() []int64 {
	out := make([]int64, len(g.Columns))
	for _, row := range g.Rows {
		for i, c := range row.Cells {
			if c.Known() {
				out[i] += c.Value
			}
		}
	}
	return out
}

// Known returns the number of known cells.
func (g *Grid) Known() int {
	n := 0
	for _, row := range g.Rows {
		for _, c := range row.Cells {
			if c.Known() {
				n++
			}
		}
	}
	return n
}

// Header returns the column headings: both index axes, every column, Total.
func (g *Grid) Header() []string {
	h := make([]string, 0, len(g.Columns)+3)
	h = append(h, g.Axes[0], g.Axes[1])
	h = append(h, g.Columns...)
	return append(h, "Total")
}

// Record returns a row as strings, aligned with Header.
func (row GridRow) Record() []string {
	rec := make([]string, 0, len(row.Cells)+3)
	rec = append(rec, row.Key.Major, row.Key.Minor)
	for _, c := range row.Cells {
		rec = append(rec, c.String())
	}
	total := ""
	if row.HasTotal {
		total = strconv.FormatInt(row.Total, 10)
	}
	return append(rec, total)
}

func sorted(labels []string) []string {
	slices.Sort(labels)
	return labels
}
