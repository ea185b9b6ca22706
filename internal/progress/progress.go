package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Kind tells what happened.
type Kind string

const (
	// KindPlanned is sent once when the number of nodes is first known and
	// again whenever rediscovery changes it.
	KindPlanned Kind = "planned"

	// KindCompleted is sent after a node was accepted.
	KindCompleted Kind = "completed"

	// KindFailed is sent after a node, or a prefix covering several nodes, failed.
	KindFailed Kind = "failed"

	// KindFinished is sent once when the run ends.
	KindFinished Kind = "finished"
)

// Event carries the running counts of one target.
type Event struct {
	Target    string
	Kind      Kind
	Planned   int
	Completed int
	Failed    int
}

// Done returns the number of finished nodes.
func (e Event) Done() int {
	return e.Completed + e.Failed
}

// Reporter receives events. Implementations must be safe for concurrent use
// since targets run in parallel.
type Reporter interface {
	Notify(Event)
}

// Nop discards events.
type Nop struct{}

// Notify implements Reporter.
func (Nop) Notify(Event) {}

// Multi fans events out to several reporters.
type Multi []Reporter

// Notify implements Reporter.
func (m Multi) Notify(e Event) {
	for _, r := range m {
		r.Notify(e)
	}
}

// Terminal prints one line per event, such as
// "[3/8] https://example.test/stats (1 failed)".
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a Terminal reporter writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Notify implements Reporter.
func (t *Terminal) Notify(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case KindPlanned:
		fmt.Fprintf(t.w, "%s: %d combinations planned\n", e.Target, e.Planned)
	case KindFinished:
		fmt.Fprintf(t.w, "%s: done, %d collected, %d failed\n", e.Target, e.Completed, e.Failed)
	default:
		line := fmt.Sprintf("[%d/%d] %s", e.Done(), e.Planned, e.Target)
		if e.Failed > 0 {
			line += fmt.Sprintf(" (%d failed)", e.Failed)
		}
		fmt.Fprintln(t.w, line)
	}
}

// Log writes events to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log reporter. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Notify implements Reporter.
func (l *Log) Notify(e Event) {
	level := slog.LevelDebug
	if e.Kind == KindFinished || e.Kind == KindFailed {
		level = slog.LevelInfo
	}
	l.logger.Log(context.Background(), level, "progress",
		"target", e.Target,
		"kind", string(e.Kind),
		"planned", e.Planned,
		"completed", e.Completed,
		"failed", e.Failed,
	)
}
