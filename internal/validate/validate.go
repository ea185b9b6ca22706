package validate

import (
	"fmt"

	"github.com/nao1215/tabcollate/internal/model"
)

// Verdict is the outcome of validating one result.
type Verdict string

const (
	Accepted Verdict = "accepted"
	Mismatch Verdict = "mismatch"
)

// Check names which comparison failed.
type Check string

const (
	// CheckCells compares the cell sum with the table's reported total.
	CheckCells Check = "cells"

	// CheckCoarse compares the reported total with the count the page
	// showed for the selection in a dropdown.
	CheckCoarse Check = "coarse"

	// CheckPrior compares the reported total with an earlier accepted visit.
	CheckPrior Check = "prior"

	// CheckAggregate compares accepted totals below a prefix with the
	// prefix's coarse total.
	CheckAggregate Check = "aggregate"
)

// TotalMismatchError reports totals that do not agree.
type TotalMismatchError struct {
	Selection model.Selection
	Check     Check
	Got       int64
	Want      int64
}

func (e *TotalMismatchError) Error() string {
	switch e.Check {
	case CheckCells:
		return fmt.Sprintf("total mismatch at %s: cells sum to %d, table reports %d", e.Selection, e.Got, e.Want)
	case CheckCoarse:
		return fmt.Sprintf("total mismatch at %s: table reports %d, page advertises %d", e.Selection, e.Got, e.Want)
	case CheckPrior:
		return fmt.Sprintf("total mismatch at %s: table reports %d, earlier visit accepted %d", e.Selection, e.Got, e.Want)
	default:
		return fmt.Sprintf("total mismatch at %s: parts sum to %d, page advertises %d", e.Selection, e.Got, e.Want)
	}
}

// Ledger holds the totals a run already knows.
// A Ledger belongs to one run and is not safe for concurrent use.
type Ledger struct {
	coarse   map[string]int64
	accepted map[string]int64
	order    []model.Selection
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		coarse:   make(map[string]int64),
		accepted: make(map[string]int64),
	}
}

// SetCoarse records the count the page advertised for sel.
func (l *Ledger) SetCoarse(sel model.Selection, total int64) {
	l.coarse[sel.Key()] = total
}

// Coarse returns the advertised count for sel.
func (l *Ledger) Coarse(sel model.Selection) (int64, bool) {
	v, ok := l.coarse[sel.Key()]
	return v, ok
}

// Record stores the total of an accepted result.
func (l *Ledger) Record(r *model.ScrapeResult) {
	key := r.Selection.Key()
	if _, ok := l.accepted[key]; !ok {
		l.order = append(l.order, r.Selection)
	}
	l.accepted[key] = r.ReportedTotal
}

// Prior returns the accepted total for sel.
func (l *Ledger) Prior(sel model.Selection) (int64, bool) {
	v, ok := l.accepted[sel.Key()]
	return v, ok
}

// Aggregate compares the accepted totals directly below prefix with the
// coarse total of prefix. children is the number of selections expected
// below it; the check is skipped unless all of them were accepted.
func (l *Ledger) Aggregate(prefix model.Selection, children int) error {
	want, ok := l.Coarse(prefix)
	if !ok {
		return nil
	}
	var got int64
	n := 0
	for _, sel := range l.order {
		if sel.Len() == prefix.Len()+1 && prefix.Covers(sel) {
			got += l.accepted[sel.Key()]
			n++
		}
	}
	if n != children || got == want {
		return nil
	}
	return &TotalMismatchError{Selection: prefix, Check: CheckAggregate, Got: got, Want: want}
}

// Validator checks results against themselves and a ledger.
type Validator struct {
	coarse bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithCoarseCheck toggles the comparison against advertised counts.
// It is on by default.
func WithCoarseCheck(enabled bool) Option {
	return func(v *Validator) {
		v.coarse = enabled
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{coarse: true}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns Accepted when every available check agrees. Otherwise it
// returns Mismatch and a *TotalMismatchError for the first failed check.
// A nil ledger skips the ledger checks.
func (v *Validator) Validate(r *model.ScrapeResult, ledger *Ledger) (Verdict, error) {
	if sum := r.Sum(); sum != r.ReportedTotal {
		return Mismatch, &TotalMismatchError{Selection: r.Selection, Check: CheckCells, Got: sum, Want: r.ReportedTotal}
	}
	if ledger == nil {
		return Accepted, nil
	}
	if v.coarse {
		if want, ok := ledger.Coarse(r.Selection); ok && want != r.ReportedTotal {
			return Mismatch, &TotalMismatchError{Selection: r.Selection, Check: CheckCoarse, Got: r.ReportedTotal, Want: want}
		}
	}
	if want, ok := ledger.Prior(r.Selection); ok && want != r.ReportedTotal {
		return Mismatch, &TotalMismatchError{Selection: r.Selection, Check: CheckPrior, Got: r.ReportedTotal, Want: want}
	}
	return Accepted, nil
}
