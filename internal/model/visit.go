package model

// VisitState is the state of one traversal node.
//
//	Idle -> Selecting -> Waiting -> Reading -> Extracting -> Validating
//	     -> Accepted | Mismatch | NavigationFailed | ExtractionFailed
type VisitState string

const (
	StateIdle             VisitState = "idle"
	StateSelecting        VisitState = "selecting"
	StateWaiting          VisitState = "waiting"
	StateReading          VisitState = "reading"
	StateExtracting       VisitState = "extracting"
	StateValidating       VisitState = "validating"
	StateAccepted         VisitState = "accepted"
	StateMismatch         VisitState = "mismatch"
	StateNavigationFailed VisitState = "navigation_failed"
	StateExtractionFailed VisitState = "extraction_failed"
)

// IsTerminal reports whether no further transition follows s.
func (s VisitState) IsTerminal() bool {
	switch s {
	case StateAccepted, StateMismatch, StateNavigationFailed, StateExtractionFailed:
		return true
	default:
		return false
	}
}

// Visit carries one node through the select/wait/read/extract/validate
// steps. It exists only for the duration of that node.
type Visit struct {
	// Target is the page being collated, for logging.
	Target string

	// From is the selection the node starts from (all outer axes but one).
	From Selection

	// Axis and Value are the choice this node makes on top of From.
	Axis  string
	Value string

	// ColumnAxis is the axis the result table breaks down by.
	ColumnAxis string

	// Reached is the stabilized selection after the choice was made.
	Reached Selection

	// Rows is the raw table read at Reached. Discarded after extraction.
	Rows []RawRow

	// Result is set once the table is extracted.
	Result *ScrapeResult

	// State is the current node state.
	State VisitState

	// Err is the error that ended the node, if any.
	Err error
}

// NewVisit creates an idle visit.
func NewVisit(target string, from Selection, axis, value, columnAxis string) *Visit {
	return &Visit{
		Target:     target,
		From:       from,
		Axis:       axis,
		Value:      value,
		ColumnAxis: columnAxis,
		State:      StateIdle,
	}
}

// Selection returns the selection this node aims for.
func (v *Visit) Selection() Selection {
	return v.From.With(v.Axis, v.Value)
}
