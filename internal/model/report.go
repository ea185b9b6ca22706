package model

import "time"

// CellState tells why a dataset cell holds, or lacks, a value.
type CellState string

const (
	// CellPresent means the cell was collected.
	CellPresent CellState = "present"

	// CellEmpty means an accepted visit read the table the cell belongs to
	// and the table did not list it: a legitimate empty result.
	CellEmpty CellState = "empty"

	// CellFailed means the combination lies under a failed prefix.
	CellFailed CellState = "failed"

	// CellUnknown means no visit, accepted or failed, touched the cell.
	CellUnknown CellState = "unknown"
)

// RunReport is the outcome of collating one target page.
type RunReport struct {
	// ID is the history identifier, set once the run is stored.
	ID int64 `json:"id,omitempty"`

	// Target is the page URL.
	Target string `json:"target"`

	// Axes are the collated axes in declared order.
	Axes [3]string `json:"axes"`

	// Route is the traversal order the planner chose.
	Route Route `json:"route"`

	// Optimized is true when conditional branching estimates were used.
	Optimized bool `json:"optimized"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Dataset holds every accepted cell.
	Dataset *Dataset `json:"dataset"`

	// Failures lists the prefixes that could not be collected.
	Failures []Failure `json:"failures"`

	// Planned is the number of traversal nodes the route called for.
	Planned int `json:"planned"`

	// Completed and Failed count finished nodes.
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// Interactions is the number of selections made against the page.
	Interactions int `json:"interactions"`

	// Warnings lists cross-checks that disagreed without failing a node.
	Warnings []string `json:"warnings,omitempty"`

	// Aborted is true when the run stopped early, by cancellation or by a
	// key collision.
	Aborted bool `json:"aborted"`

	// AbortReason is the error text that stopped the run.
	AbortReason string `json:"abort_reason,omitempty"`
}

// NewRunReport creates a report with an empty dataset.
func NewRunReport(target string, axes [3]string) *RunReport {
	return &RunReport{
		Target:    target,
		Axes:      axes,
		Dataset:   NewDataset(axes),
		Failures:  []Failure{},
		StartedAt: time.Now(),
	}
}

// AddFailure records a failed prefix.
func (r *RunReport) AddFailure(f Failure) {
	r.Failures = append(r.Failures, f)
	r.Failed++
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// CellState classifies one cell given in declared axis order.
func (r *RunReport) CellState(major, minor, column string) CellState {
	if _, ok := r.Dataset.Get(major, minor, column); ok {
		return CellPresent
	}
	if r.Dataset.IsCovered(major, minor, column) {
		return CellEmpty
	}
	cell := NewSelection(
		Choice{Axis: r.Axes[0], Value: major},
		Choice{Axis: r.Axes[1], Value: minor},
		Choice{Axis: r.Axes[2], Value: column},
	)
	for _, f := range r.Failures {
		if f.Selection.Matches(cell) {
			return CellFailed
		}
	}
	return CellUnknown
}

// Warn records a warning.
func (r *RunReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// FailedPrefixes returns the selections of every failure.
func (r *RunReport) FailedPrefixes() []Selection {
	out := make([]Selection, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.Selection)
	}
	return out
}

// IsComplete reports whether the run finished without failures.
func (r *RunReport) IsComplete() bool {
	return !r.Aborted && len(r.Failures) == 0
}
