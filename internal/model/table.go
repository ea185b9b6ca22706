package model

// Option is one legal value offered by an axis control.
type Option struct {
	// Label is the visible option text. Labels are opaque; no ordering is
	// assumed beyond the order in which the page lists them.
	Label string `json:"label"`

	// Count is the aggregate figure the page shows next to the option,
	// when it shows one. It is used as an independently retrieved coarse
	// total for the combinations below this option.
	Count int64 `json:"count,omitempty"`

	// HasCount reports whether Count was shown by the page.
	HasCount bool `json:"has_count,omitempty"`
}

// Labels returns the labels of opts in order.
func Labels(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}

// RawRow is one rendered table row before any interpretation.
type RawRow struct {
	// Cells holds the visible text of each cell, left to right.
	Cells []string `json:"cells"`

	// Header is true for rows made only of header cells (<th>).
	Header bool `json:"header,omitempty"`
}

// Cell is one labeled numeric value of a result table.
type Cell struct {
	// Label is the value of the column axis this cell belongs to.
	Label string `json:"label"`

	// Value is the normalized count.
	Value int64 `json:"value"`
}

// TotalSource tells where a ScrapeResult's reported total came from.
type TotalSource string

const (
	// TotalExplicit means the page displayed a total row or cell.
	TotalExplicit TotalSource = "explicit"

	// TotalSummed means no total was displayed and the cells were summed.
	TotalSummed TotalSource = "summed"
)

// ScrapeResult is what one visit extracted from the result table.
// It is owned by the traversal until it is validated and folded, or rejected.
type ScrapeResult struct {
	// Selection is the stabilized selection the table was read at.
	Selection Selection `json:"selection"`

	// ColumnAxis is the axis whose values label the cells.
	ColumnAxis string `json:"column_axis"`

	// Cells are the data cells in display order.
	Cells []Cell `json:"cells"`

	// ReportedTotal is the total shown by the page, or the cell sum when
	// TotalSource is TotalSummed.
	ReportedTotal int64 `json:"reported_total"`

	// TotalSource tells where ReportedTotal came from.
	TotalSource TotalSource `json:"total_source"`
}

// Sum returns the sum of all cell values.
func (r *ScrapeResult) Sum() int64 {
	var sum int64
	for _, c := range r.Cells {
		sum += c.Value
	}
	return sum
}
