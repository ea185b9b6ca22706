package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/tabcollate/internal/model"
)

// TextWriter outputs human-readable reports for the terminal.
// Numbers are grouped ("12,345") and unknown cells are left blank.
type TextWriter struct {
	baseWriter

	// summaryOnly omits the dataset table.
	summaryOnly bool

	// verbose prints failure messages and warnings in full.
	verbose bool

	printer *message.Printer
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithSummaryOnly omits the dataset table, leaving the run summary and failures.
func WithSummaryOnly(summary bool) TextWriterOption {
	return func(w *TextWriter) {
		w.summaryOnly = summary
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs every report in human-readable format.
func (w *TextWriter) Write(reports []*model.RunReport) (int, error) {
	var sb strings.Builder
	for _, r := range reports {
		w.writeHeader(&sb, r)
		if !w.summaryOnly {
			w.writeDataset(&sb, NewGrid(r))
		}
		w.writeFailures(&sb, r)
		w.writeWarnings(&sb, r)
	}
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteComparison outputs the cell differences between two runs.
func (w *TextWriter) WriteComparison(older, newer *model.RunReport, c *model.Comparison) (int, error) {
	var sb strings.Builder
	rule(&sb, "=")
	fmt.Fprintf(&sb, "Target:  %s\n", newer.Target)
	fmt.Fprintf(&sb, "Older:   run %d at %s\n", older.ID, older.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Newer:   run %d at %s\n", newer.ID, newer.StartedAt.Format("2006-01-02 15:04:05 MST"))
	rule(&sb, "=")
	sb.WriteString("\n")

	if c.Identical() {
		sb.WriteString("  Datasets are identical.\n\n")
		return w.output.Write([]byte(sb.String()))
	}
	fmt.Fprintf(&sb, "  %d changed, %d added, %d removed\n\n", len(c.Changed), len(c.Added), len(c.Removed))

	axes := newer.Axes
	sections := []struct {
		title   string
		changes []model.CellChange
	}{
		{"CHANGED", c.Changed},
		{"ADDED", c.Added},
		{"REMOVED", c.Removed},
	}
	for _, s := range sections {
		if len(s.changes) == 0 {
			continue
		}
		section(&sb, s.title)
		t := newTable()
		t.AppendHeader(table.Row{axes[0], axes[1], axes[2], "Old", "New", "Delta"})
		for _, ch := range s.changes {
			t.AppendRow(table.Row{
				ch.Key.Major, ch.Key.Minor, ch.Column,
				w.number(ch.Old), w.number(ch.New), w.printer.Sprintf("%+d", ch.Delta()),
			})
		}
		rightAlign(t, 4, 5, 6)
		sb.WriteString(t.Render())
		sb.WriteString("\n\n")
	}
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run summary.
func (w *TextWriter) writeHeader(sb *strings.Builder, r *model.RunReport) {
	sb.WriteString("\n")
	rule(sb, "=")
	fmt.Fprintf(sb, "Target:        %s\n", r.Target)
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Axes:          %s / %s / %s\n", r.Axes[0], r.Axes[1], r.Axes[2])
	fmt.Fprintf(sb, "Route:         %s", r.Route)
	if r.Optimized {
		sb.WriteString(" (optimized)")
	}
	sb.WriteString("\n")
	if r.ID != 0 {
		fmt.Fprintf(sb, "Run ID:        %d\n", r.ID)
	}
	fmt.Fprintf(sb, "Started:       %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:      %s\n", r.Duration().Round(time.Millisecond))
	w.printer.Fprintf(sb, "Nodes:         %d planned, %d completed, %d failed\n", r.Planned, r.Completed, r.Failed)
	w.printer.Fprintf(sb, "Interactions:  %d\n", r.Interactions)
	w.printer.Fprintf(sb, "Cells:         %d\n", r.Dataset.Cells())
	fmt.Fprintf(sb, "Status:        %s\n", statusText(r))
	sb.WriteString("\n")
}

// writeDataset writes the cleaned dataset as a table.
func (w *TextWriter) writeDataset(sb *strings.Builder, g *Grid) {
	section(sb, "DATASET")
	if len(g.Rows) == 0 || len(g.Columns) == 0 {
		sb.WriteString("  No cells were collected\n\n")
		return
	}

	t := newTable()
	header := make(table.Row, 0, len(g.Columns)+3)
	for _, h := range g.Header() {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, row := range g.Rows {
		r := make(table.Row, 0, len(row.Cells)+3)
		r = append(r, row.Key.Major, row.Key.Minor)
		for _, c := range row.Cells {
			if c.Known() {
				r = append(r, w.number(c.Value))
			} else {
				r = append(r, "")
			}
		}
		if row.HasTotal {
			r = append(r, w.number(row.Total))
		} else {
			r = append(r, "")
		}
		t.AppendRow(r)
	}

	footer := table.Row{"Total", ""}
	for _, v := range g.ColumnTotals() {
		footer = append(footer, w.number(v))
	}
	t.AppendFooter(append(footer, ""))

	cols := make([]int, 0, len(g.Columns)+1)
	for i := range len(g.Columns) + 1 {
		cols = append(cols, i+3)
	}
	rightAlign(t, cols...)
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
}

// writeFailures lists the failed prefixes.
func (w *TextWriter) writeFailures(sb *strings.Builder, r *model.RunReport) {
	if len(r.Failures) == 0 {
		return
	}
	section(sb, "FAILURES")
	for _, f := range r.Failures {
		fmt.Fprintf(sb, "  [!] %s  (%s", f.Selection, f.Kind)
		if f.Attempts > 0 {
			fmt.Fprintf(sb, ", %d attempts", f.Attempts)
		}
		sb.WriteString(")\n")
		msg := f.Message
		if !w.verbose {
			msg = truncateString(msg, 100)
		}
		fmt.Fprintf(sb, "      %s\n", msg)
	}
	if r.ID != 0 {
		fmt.Fprintf(sb, "\n  Retry with: tabcollate collate --only-failed %d\n", r.ID)
	}
	sb.WriteString("\n")
}

// writeWarnings lists cross-check warnings.
func (w *TextWriter) writeWarnings(sb *strings.Builder, r *model.RunReport) {
	if len(r.Warnings) == 0 {
		return
	}
	section(sb, "WARNINGS")
	for _, msg := range r.Warnings {
		if !w.verbose {
			msg = truncateString(msg, 100)
		}
		fmt.Fprintf(sb, "  [-] %s\n", msg)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by tabcollate\n")
	sb.WriteString("https://github.com/nao1215/tabcollate\n")
	rule(sb, "=")
}

func (w *TextWriter) number(v int64) string {
	return w.printer.Sprintf("%d", v)
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// rightAlign right-aligns the given 1-based columns.
func rightAlign(t table.Writer, cols ...int) {
	configs := make([]table.ColumnConfig, 0, len(cols))
	for _, n := range cols {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
}
