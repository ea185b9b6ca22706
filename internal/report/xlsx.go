package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/tabcollate/internal/model"
)

// XLSXWriter outputs an Excel workbook with one dataset sheet per run and a
// summary sheet listing every run and its failures.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

const summarySheet = "Summary"

// Write outputs the workbook.
func (w *XLSXWriter) Write(reports []*model.RunReport) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{
		"Sheet", "Target", "Route", "Planned", "Completed", "Failed", "Cells", "Status", "Digest",
	}); err != nil {
		return 0, err
	}

	failureRow := len(reports) + 3
	if hasFailures(reports) {
		cell, err := excelize.CoordinatesToCellName(1, failureRow-1)
		if err != nil {
			return 0, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]any{"Sheet", "Failed prefix", "Kind", "Attempts", "Error"}); err != nil {
			return 0, err
		}
	}
	for i, r := range reports {
		name := sheetName(i, r)
		if _, err := f.NewSheet(name); err != nil {
			return 0, err
		}
		if err := writeGridSheet(f, name, NewGrid(r)); err != nil {
			return 0, err
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]any{
			name, r.Target, r.Route.String(), r.Planned, r.Completed, r.Failed,
			r.Dataset.Cells(), statusText(r), r.Dataset.Digest(),
		}); err != nil {
			return 0, err
		}

		for _, fl := range r.Failures {
			cell, err := excelize.CoordinatesToCellName(1, failureRow)
			if err != nil {
				return 0, err
			}
			if err := f.SetSheetRow(summarySheet, cell, &[]any{
				name, fl.Selection.String(), string(fl.Kind), fl.Attempts, fl.Message,
			}); err != nil {
				return 0, err
			}
			failureRow++
		}
	}

	cw := &countingWriter{w: w.output}
	if err := f.Write(cw); err != nil {
		return cw.n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return cw.n, nil
}

// writeGridSheet writes a cleaned dataset. Unknown cells stay blank.
func writeGridSheet(f *excelize.File, sheet string, g *Grid) error {
	header := make([]any, 0, len(g.Columns)+3)
	for _, h := range g.Header() {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range g.Rows {
		values := make([]any, 0, len(row.Cells)+3)
		values = append(values, row.Key.Major, row.Key.Minor)
		for _, c := range row.Cells {
			if c.Known() {
				values = append(values, c.Value)
			} else {
				values = append(values, nil)
			}
		}
		if row.HasTotal {
			values = append(values, row.Total)
		} else {
			values = append(values, nil)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	})
}

// sheetName derives a sheet name from the target host. Excel limits names
// to 31 characters and forbids a few punctuation marks.
func sheetName(i int, r *model.RunReport) string {
	name := r.Target
	if _, rest, ok := strings.Cut(name, "://"); ok {
		name = rest
	}
	name = strings.Map(func(c rune) rune {
		switch c {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return c
	}, name)
	prefix := fmt.Sprintf("%d ", i+1)
	limit := 31 - len(prefix)
	if r := []rune(name); len(r) > limit {
		name = string(r[:limit])
	}
	return prefix + name
}

func hasFailures(reports []*model.RunReport) bool {
	for _, r := range reports {
		if len(r.Failures) > 0 {
			return true
		}
	}
	return false
}
