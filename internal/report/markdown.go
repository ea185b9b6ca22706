package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/tabcollate/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs every report as one Markdown document.
func (w *MarkdownWriter) Write(reports []*model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Collation Report")
	md.PlainText("")

	for _, r := range reports {
		grid := NewGrid(r)
		w.writeHeader(md, r)
		w.writeAlert(md, r)
		w.writeDataset(md, grid)
		w.writeChart(md, grid)
		w.writeFailures(md, r)
		w.writeWarnings(md, r)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *model.RunReport) {
	md.H2(r.Target)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Axes", fmt.Sprintf("%s / %s / %s", r.Axes[0], r.Axes[1], r.Axes[2])},
			{"Route", r.Route.String()},
			{"Optimized", strconv.FormatBool(r.Optimized)},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", r.Duration().Round(time.Millisecond).String()},
			{"Nodes", fmt.Sprintf("%d planned, %d completed, %d failed", r.Planned, r.Completed, r.Failed)},
			{"Interactions", strconv.Itoa(r.Interactions)},
			{"Digest", "`" + r.Dataset.Digest()[:16] + "`"},
			{"Status", statusText(r)},
		},
	})
	md.PlainText("")
}

// writeAlert writes an alert matching how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.RunReport) {
	switch {
	case r.Aborted:
		md.Cautionf("The run was aborted: %s", r.AbortReason)
	case len(r.Failures) > 0:
		md.Warningf("%d combination prefix(es) could not be collected. Their cells are left empty.", len(r.Failures))
	case len(r.Warnings) > 0:
		md.Note(fmt.Sprintf("%d cross-check warning(s) were recorded.", len(r.Warnings)))
	default:
		md.Tip("Every planned combination was collected and validated.")
	}
	md.PlainText("")
}

// writeDataset writes the cleaned dataset table.
func (w *MarkdownWriter) writeDataset(md *markdown.Markdown, g *Grid) {
	md.H3("Dataset")
	md.PlainText("")

	if len(g.Rows) == 0 || len(g.Columns) == 0 {
		md.PlainText("No cells were collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(g.Rows))
	for i, row := range g.Rows {
		rows[i] = row.Record()
	}
	md.Table(markdown.TableSet{
		Header: g.Header(),
		Rows:   rows,
	})
	md.PlainText("")
}

// writeChart writes a mermaid pie chart of the column totals.
func (w *MarkdownWriter) writeChart(md *markdown.Markdown, g *Grid) {
	totals := g.ColumnTotals()
	var drawn bool
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(g.Axes[2]),
		piechart.WithShowData(true),
	)
	for i, col := range g.Columns {
		if totals[i] <= 0 {
			continue
		}
		chart.LabelAndIntValue(col, uint64(totals[i]))
		drawn = true
	}
	if !drawn {
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures lists the failed prefixes so a later run can retry them.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, r *model.RunReport) {
	if len(r.Failures) == 0 {
		return
	}
	md.H3("Failures")
	md.PlainText("")

	rows := make([][]string, len(r.Failures))
	for i, f := range r.Failures {
		rows[i] = []string{
			"`" + f.Selection.String() + "`",
			string(f.Kind),
			strconv.Itoa(f.Attempts),
			truncateString(f.Message, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Prefix", "Kind", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
	if r.ID != 0 {
		md.PlainTextf("Re-run with `tabcollate collate --only-failed %d` to retry them.", r.ID)
		md.PlainText("")
	}
}

// writeWarnings lists cross-check warnings.
func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, r *model.RunReport) {
	if len(r.Warnings) == 0 {
		return
	}
	md.H3("Warnings")
	md.PlainText("")
	md.BulletList(r.Warnings...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [tabcollate](https://github.com/nao1215/tabcollate)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
