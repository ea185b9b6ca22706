package model

// FailureKind classifies why a combination was not folded into the dataset.
type FailureKind string

const (
	// FailureAxisDependency means an axis offered no values where at least
	// one was expected; navigation state is likely wrong.
	FailureAxisDependency FailureKind = "axis_dependency"

	// FailureNavigation means transient UI inconsistency outlasted the
	// retry budget.
	FailureNavigation FailureKind = "navigation"

	// FailureExtraction means the table contents could not be parsed.
	FailureExtraction FailureKind = "extraction"

	// FailureTotalMismatch means extracted cells did not sum to the
	// reported total, or the total disagreed with a coarse total.
	FailureTotalMismatch FailureKind = "total_mismatch"
)

// Failure records one combination prefix that could not be collected.
// A failure at an outer prefix covers every combination below it.
type Failure struct {
	// Selection is the prefix that failed.
	Selection Selection `json:"selection"`

	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// Message is the error text.
	Message string `json:"message"`

	// Attempts is the number of visits made to the node, when known.
	Attempts int `json:"attempts,omitempty"`
}
