package driver

import (
	"errors"
	"fmt"

	"github.com/nao1215/tabcollate/internal/model"
)

var (
	// ErrStaleReference means a reference to page content became invalid
	// because the page re-rendered. It is transient.
	ErrStaleReference = errors.New("stale page reference")

	// ErrNotReady means an expected control or table is momentarily absent
	// or the page did not settle in time. It is transient.
	ErrNotReady = errors.New("page not ready")

	// ErrOptionNotFound means a control does not offer the requested value.
	ErrOptionNotFound = errors.New("option not offered")

	// ErrUnknownControl means no control is configured for an axis.
	ErrUnknownControl = errors.New("no control for axis")

	// ErrUnstableRead means a read was requested for a selection that has
	// not been stabilized.
	ErrUnstableRead = errors.New("read requested before the selection stabilized")
)

// IsTransient reports whether err is a transient UI inconsistency that a
// retry may clear.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStaleReference) || errors.Is(err, ErrNotReady)
}

// NavigationError reports an interaction that failed for good, either
// because its retry budget ran out or because the failure was not transient.
type NavigationError struct {
	// Op is the interaction: "select", "wait", "discover", "read",
	// "breakdown" or "reset".
	Op string

	// Axis and Value identify the choice, when the interaction made one.
	Axis  string
	Value string

	// Selection is the selection the interaction worked towards.
	Selection model.Selection

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last underlying error.
	Err error
}

func (e *NavigationError) Error() string {
	target := e.Selection.String()
	if e.Axis != "" {
		target = fmt.Sprintf("%s=%s at %s", e.Axis, e.Value, e.Selection)
	}
	return fmt.Sprintf("navigation failed: %s %s after %d attempts: %v", e.Op, target, e.Attempts, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
