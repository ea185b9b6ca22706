package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/tabcollate/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
// The raw dataset keeps its coverage so a stored report can be restored;
// the cleaned grid sits next to it for consumers that only want the table.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is written into the document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tabcollate version in the document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONRun is one run as written by JSONWriter.
type JSONRun struct {
	*model.RunReport

	// Digest identifies the collected numbers.
	Digest string `json:"digest"`

	// Grid is the cleaned dataset.
	Grid *Grid `json:"grid"`
}

// JSONDocument is the top-level object written by JSONWriter.
type JSONDocument struct {
	Version string    `json:"version,omitempty"`
	Runs    []JSONRun `json:"runs"`
}

// Write outputs every report in one document.
func (w *JSONWriter) Write(reports []*model.RunReport) (int, error) {
	doc := JSONDocument{Version: w.version, Runs: make([]JSONRun, 0, len(reports))}
	for _, r := range reports {
		doc.Runs = append(doc.Runs, JSONRun{RunReport: r, Digest: r.Dataset.Digest(), Grid: NewGrid(r)})
	}
	return w.writeJSON(doc)
}

// JSONComparison is the document written by WriteComparison.
type JSONComparison struct {
	Target string `json:"target"`
	OldID  int64  `json:"old_id"`
	NewID  int64  `json:"new_id"`

	Identical bool `json:"identical"`
	*model.Comparison
}

// WriteComparison outputs the difference between two runs.
func (w *JSONWriter) WriteComparison(older, newer *model.RunReport, c *model.Comparison) (int, error) {
	return w.writeJSON(JSONComparison{
		Target:     newer.Target,
		OldID:      older.ID,
		NewID:      newer.ID,
		Identical:  c.Identical(),
		Comparison: c,
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
