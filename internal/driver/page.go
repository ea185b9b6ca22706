package driver

import (
	"context"

	"github.com/nao1215/tabcollate/internal/model"
)

// Page is an interactive page exposing one control per axis and a single
// result table.
//
// Methods may fail with an error wrapping ErrStaleReference or ErrNotReady
// while the page re-renders; the Driver retries those. Any other error is
// treated as permanent for the interaction.
type Page interface {
	// Options lists the options the axis control offers right now.
	Options(ctx context.Context, axis string) ([]model.Option, error)

	// Choose sets the axis control to value. It does not wait for the page
	// to re-render.
	Choose(ctx context.Context, axis, value string) error

	// Breakdown makes the result table break down by axis.
	// Pages whose table always breaks down by one axis return nil for that
	// axis and an error for any other.
	Breakdown(ctx context.Context, axis string) error

	// Snapshot returns an opaque token describing what is rendered now.
	// Two equal snapshots mean nothing visible changed in between.
	Snapshot(ctx context.Context) (string, error)

	// Table returns the rows of the result table as rendered now.
	Table(ctx context.Context) ([]model.RawRow, error)

	// Reset reloads the page to its initial state.
	Reset(ctx context.Context) error
}
