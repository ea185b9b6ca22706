package report

import (
	"fmt"
	"io"

	"github.com/nao1215/tabcollate/internal/model"
)

// Writer defines the interface for report output.
// Implementations write collation results in various formats.
type Writer interface {
	// Write outputs the reports of one invocation, one per target page.
	// Returns the number of bytes written and any error encountered.
	Write(reports []*model.RunReport) (int, error)
}

// ComparisonWriter is implemented by writers that can render the
// difference between two stored runs.
type ComparisonWriter interface {
	WriteComparison(older, newer *model.RunReport, c *model.Comparison) (int, error)
}

// MultiWriter writes to multiple Writers in turn.
// This is useful for a terminal summary alongside a report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the reports to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(reports []*model.RunReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Format names accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
)

// New returns the writer for a format name.
func New(format string, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatXLSX:
		return NewXLSXWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(r *model.RunReport) string {
	switch {
	case r.Aborted:
		return "Aborted: " + r.AbortReason
	case len(r.Failures) > 0:
		return fmt.Sprintf("Partial (%d failed)", len(r.Failures))
	default:
		return "Complete"
	}
}

// countingWriter counts the bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
