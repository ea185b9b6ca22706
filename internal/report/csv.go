package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/tabcollate/internal/model"
)

// CSVWriter outputs the cleaned datasets as comma-separated values in long
// form: one line per cell, so runs over different axes share one file.
// Unknown cells are written with an empty value and their state.
type CSVWriter struct {
	baseWriter
}

// CSVHeader is the first line written by CSVWriter.
var CSVHeader = []string{"target", "major_axis", "major", "minor_axis", "minor", "column_axis", "column", "value", "state"}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every cell of every report.
func (w *CSVWriter) Write(reports []*model.RunReport) (int, error) {
	cw := &countingWriter{w: w.output}
	out := csv.NewWriter(cw)
	if err := out.Write(CSVHeader); err != nil {
		return cw.n, err
	}
	for _, r := range reports {
		g := NewGrid(r)
		for _, row := range g.Rows {
			for i, c := range row.Cells {
				value := ""
				if c.Known() {
					value = strconv.FormatInt(c.Value, 10)
				}
				rec := []string{
					r.Target,
					g.Axes[0], row.Key.Major,
					g.Axes[1], row.Key.Minor,
					g.Axes[2], g.Columns[i],
					value, string(c.State),
				}
				if err := out.Write(rec); err != nil {
					return cw.n, err
				}
			}
		}
	}
	out.Flush()
	return cw.n, out.Error()
}
