package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/tabcollate/internal/model"
)

// DefaultTotalLabels are the row labels recognized as the total row.
var DefaultTotalLabels = []string{"total", "all"}

var (
	// ErrNotNumeric is wrapped by ExtractionError for unparseable counts.
	ErrNotNumeric = errors.New("not a count")

	// ErrDuplicateLabel is wrapped by ExtractionError when a label repeats.
	ErrDuplicateLabel = errors.New("duplicate row label")

	// ErrMissingCell is wrapped by ExtractionError when a row lacks the count cell.
	ErrMissingCell = errors.New("count cell missing")
)

// ExtractionError reports a table that could not be parsed.
type ExtractionError struct {
	// Row is the zero-based row index in the raw table.
	Row int

	// Text is the offending cell text.
	Text string

	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract row %d %q: %v", e.Row, e.Text, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Result is a parsed table.
type Result struct {
	Cells         []model.Cell
	ReportedTotal int64
	Source        model.TotalSource
}

// Extractor parses result tables.
type Extractor struct {
	totalLabels []string
	valueColumn int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTotalLabels sets the labels that mark the total row. Whole labels are
// compared case-insensitively, so "All" does not match "All others".
func WithTotalLabels(labels ...string) Option {
	return func(x *Extractor) {
		if len(labels) > 0 {
			x.totalLabels = labels
		}
	}
}

// WithValueColumn sets the cell index holding the count in multi-cell rows.
// Negative values count from the end, so -1 is the last cell.
func WithValueColumn(i int) Option {
	return func(x *Extractor) {
		x.valueColumn = i
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{
		totalLabels: DefaultTotalLabels,
		valueColumn: 1,
	}
	for _, opt := range opts {
		opt(x)
	}
	folded := make([]string, len(x.totalLabels))
	for i, l := range x.totalLabels {
		folded[i] = fold(strings.TrimSpace(l))
	}
	x.totalLabels = folded
	return x
}

// Extract parses rows.
//
// Cells keep display order. Rows flagged as headers and blank rows are
// skipped, as is one leading untagged caption row whose count cell holds no
// digits. Since that row could also be a garbled data row, it is only
// accepted when the table reports its own total. A total row ahead of the
// data is recorded and parsing goes on; a total row after the data ends
// the table. A single-cell row such as "Granted 1,024" is split at its last
// space. Cells shown as "-" are absent, not zero.
func (x *Extractor) Extract(rows []model.RawRow) (*Result, error) {
	res := &Result{Cells: []model.Cell{}, Source: model.TotalSummed}
	seen := make(map[string]struct{})
	var sum int64
	started := false
	caption := -1

	for i, row := range rows {
		if row.Header || blank(row.Cells) {
			continue
		}
		first := !started && caption < 0 && res.Source == model.TotalSummed
		label, text, ok := x.split(row.Cells)
		if !ok {
			if first {
				caption = i
				continue
			}
			return nil, &ExtractionError{Row: i, Text: strings.Join(row.Cells, " "), Err: ErrMissingCell}
		}
		if x.isTotal(label) {
			n, err := ParseCount(text)
			if err != nil {
				return nil, &ExtractionError{Row: i, Text: text, Err: err}
			}
			res.ReportedTotal = n
			res.Source = model.TotalExplicit
			if started {
				break
			}
			continue
		}
		if isDash(text) {
			started = true
			continue
		}
		n, err := ParseCount(text)
		if err != nil {
			if first && !hasDigit(text) {
				caption = i
				continue
			}
			return nil, &ExtractionError{Row: i, Text: text, Err: err}
		}
		started = true
		if _, dup := seen[label]; dup {
			return nil, &ExtractionError{Row: i, Text: label, Err: ErrDuplicateLabel}
		}
		seen[label] = struct{}{}
		res.Cells = append(res.Cells, model.Cell{Label: label, Value: n})
		sum += n
	}

	if res.Source == model.TotalSummed {
		if caption >= 0 && started {
			return nil, &ExtractionError{Row: caption, Text: strings.Join(rows[caption].Cells, " "), Err: ErrNotNumeric}
		}
		res.ReportedTotal = sum
	}
	return res, nil
}

func (x *Extractor) split(cells []string) (label, value string, ok bool) {
	if len(cells) == 1 {
		text := strings.TrimSpace(cells[0])
		i := strings.LastIndexAny(text, " \u00a0")
		if i < 0 {
			return "", "", false
		}
		return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i:]), true
	}
	idx := x.valueColumn
	if idx < 0 {
		idx += len(cells)
	}
	if idx <= 0 || idx >= len(cells) {
		return "", "", false
	}
	return strings.TrimSpace(cells[0]), strings.TrimSpace(cells[idx]), true
}

func (x *Extractor) isTotal(label string) bool {
	l := fold(label)
	for _, t := range x.totalLabels {
		if l == t {
			return true
		}
	}
	return false
}

// ParseCount normalizes a displayed count such as "1,024" or "12 345"
// and parses it. Counts are non-negative integers.
func ParseCount(text string) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, text)
	if cleaned == "" {
		return 0, ErrNotNumeric
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrNotNumeric
	}
	return n, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func hasDigit(text string) bool {
	return strings.ContainsAny(text, "0123456789")
}

func isDash(text string) bool {
	switch text {
	case "-", "–", "—":
		return true
	}
	return false
}

// fold returns the case-folded form of s. A Caser keeps state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
