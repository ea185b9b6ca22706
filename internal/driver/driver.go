package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/retry"
)

const (
	// DefaultStableTimeout bounds the wait for a selection to settle.
	DefaultStableTimeout = 10 * time.Second

	// DefaultSettle is how long the page must stay unchanged to count as stable.
	DefaultSettle = 300 * time.Millisecond

	// DefaultPoll is the snapshot polling interval.
	DefaultPoll = 50 * time.Millisecond
)

// Driver wraps a Page with retries, stability waits and state tracking.
type Driver struct {
	page    Page
	exec    *retry.Executor
	limiter *rate.Limiter
	logger  *slog.Logger

	stableTimeout time.Duration
	settle        time.Duration
	poll          time.Duration

	// applied is the ordered prefix of choices known to be in effect.
	applied model.Selection
	// held is every choice made since the last reset. Choices past the
	// applied prefix may or may not still be in effect on the page.
	held model.Selection
	// pending is the selection chosen but not yet stabilized.
	pending model.Selection
	// stable is the last stabilized selection; valid when isStable.
	stable   model.Selection
	isStable bool
	// breakdown is the table breakdown axis, re-applied after a reset.
	breakdown string
	// tainted is set after a failed choice; the page is reset before the
	// next interaction.
	tainted bool

	interactions int
	resets       int
}

// Option configures a Driver.
type Option func(*Driver)

// WithExecutor sets the retry executor applied to every interaction.
func WithExecutor(e *retry.Executor) Option {
	return func(d *Driver) {
		d.exec = e
	}
}

// WithStability sets the stability timeout, the settle time and the
// snapshot polling interval.
func WithStability(timeout, settle, poll time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.stableTimeout = timeout
		}
		if settle >= 0 {
			d.settle = settle
		}
		if poll > 0 {
			d.poll = poll
		}
	}
}

// WithInteractionDelay spaces choices at least delay apart.
// Zero leaves choices unpaced.
func WithInteractionDelay(delay time.Duration) Option {
	return func(d *Driver) {
		if delay > 0 {
			d.limiter = rate.NewLimiter(rate.Every(delay), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// New creates a Driver for page.
func New(page Page, opts ...Option) *Driver {
	d := &Driver{
		page:          page,
		stableTimeout: DefaultStableTimeout,
		settle:        DefaultSettle,
		poll:          DefaultPoll,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.exec == nil {
		d.exec = retry.New(retry.WithRetryable(IsTransient), retry.WithLogger(d.logger))
	}
	return d
}

// Interactions returns the number of choices made so far.
func (d *Driver) Interactions() int {
	return d.interactions
}

// Resets returns the number of page reloads so far.
func (d *Driver) Resets() int {
	return d.resets
}

// Stable returns the last stabilized selection.
func (d *Driver) Stable() (model.Selection, bool) {
	return d.stable, d.isStable
}

// Select moves the page to at plus axis=value and waits until it is stable.
// It returns the stabilized selection.
func (d *Driver) Select(ctx context.Context, at model.Selection, axis, value string) (model.Selection, error) {
	if err := d.Choose(ctx, at, axis, value); err != nil {
		return model.Selection{}, err
	}
	return d.WaitStable(ctx)
}

// Choose moves the page to at and then chooses axis=value, without waiting
// for the final choice to render. WaitStable must follow before a read.
func (d *Driver) Choose(ctx context.Context, at model.Selection, axis, value string) error {
	target := at.With(axis, value)
	reset := d.mustReset(target, true)
	err := d.chooseAt(ctx, at, axis, value, reset)
	if err != nil && !reset && d.hidden(err, target) {
		d.logger.Debug("option hidden by an earlier choice, reloading", "selection", target.String(), "held", d.held.String())
		err = d.chooseAt(ctx, at, axis, value, true)
	}
	return err
}

func (d *Driver) chooseAt(ctx context.Context, at model.Selection, axis, value string, reset bool) error {
	if err := d.ensure(ctx, at, reset); err != nil {
		return err
	}
	d.isStable = false
	if err := d.choose(ctx, at, axis, value); err != nil {
		return err
	}
	d.pending = at.With(axis, value)
	return nil
}

// hidden reports whether err is a missing option that a held choice outside
// target may be hiding.
func (d *Driver) hidden(err error, target model.Selection) bool {
	if !errors.Is(err, ErrOptionNotFound) {
		return false
	}
	for _, h := range d.held.Choices() {
		if !target.Has(h.Axis) {
			return true
		}
	}
	return false
}

// WaitStable blocks until the page stops changing and returns the selection
// it settled on.
func (d *Driver) WaitStable(ctx context.Context) (model.Selection, error) {
	err := d.exec.Do(ctx, "wait", d.waitStable)
	if err != nil {
		d.tainted = true
		return model.Selection{}, d.navError("wait", "", "", d.pending, err)
	}
	d.stable = d.pending
	d.isStable = true
	return d.stable, nil
}

// Discover lists the options of axis with the page at selection at.
// The page is reloaded first if choices outside at are in effect, since they
// could narrow the listed options.
func (d *Driver) Discover(ctx context.Context, at model.Selection, axis string) ([]model.Option, error) {
	target := at.With(axis, "")
	reset := d.mustReset(target, false)
	err := d.ensure(ctx, at, reset)
	if err != nil && !reset && d.hidden(err, at) {
		err = d.ensure(ctx, at, true)
	}
	if err != nil {
		return nil, err
	}
	opts, err := retry.Value(ctx, d.exec, "discover", func(ctx context.Context) ([]model.Option, error) {
		return d.page.Options(ctx, axis)
	})
	if err != nil {
		return nil, d.navError("discover", axis, "", at, err)
	}
	return opts, nil
}

// ReadVisibleTable returns the raw rows of the result table.
// It fails with ErrUnstableRead unless the last stabilized selection is at.
func (d *Driver) ReadVisibleTable(ctx context.Context, at model.Selection) ([]model.RawRow, error) {
	if !d.isStable || !d.stable.Equal(at) {
		have := "nothing"
		if d.isStable {
			have = d.stable.String()
		}
		return nil, fmt.Errorf("%w: want %s, stabilized %s", ErrUnstableRead, at, have)
	}
	rows, err := retry.Value(ctx, d.exec, "read", func(ctx context.Context) ([]model.RawRow, error) {
		return d.page.Table(ctx)
	})
	if err != nil {
		return nil, d.navError("read", "", "", at, err)
	}
	return rows, nil
}

// Breakdown makes the result table break down by axis.
// The breakdown is restored after every reset.
func (d *Driver) Breakdown(ctx context.Context, axis string) error {
	if err := d.applyBreakdown(ctx, axis); err != nil {
		return err
	}
	d.breakdown = axis
	return nil
}

// Reset reloads the page and restores the breakdown.
func (d *Driver) Reset(ctx context.Context) error {
	d.isStable = false
	err := d.exec.Do(ctx, "reset", func(ctx context.Context) error {
		if err := d.page.Reset(ctx); err != nil {
			return err
		}
		return d.waitStable(ctx)
	})
	if err != nil {
		return d.navError("reset", "", "", model.Selection{}, err)
	}
	d.resets++
	d.applied = model.Selection{}
	d.held = model.Selection{}
	d.pending = model.Selection{}
	d.stable = model.Selection{}
	d.isStable = true
	d.tainted = false
	if d.breakdown != "" {
		if err := d.applyBreakdown(ctx, d.breakdown); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) applyBreakdown(ctx context.Context, axis string) error {
	err := d.exec.Do(ctx, "breakdown", func(ctx context.Context) error {
		if err := d.page.Breakdown(ctx, axis); err != nil {
			return err
		}
		return d.waitStable(ctx)
	})
	if err != nil {
		d.tainted = true
		return d.navError("breakdown", axis, "", d.applied, err)
	}
	return nil
}

// mustReset reports whether a held choice could distort the page at target.
//
// A held axis absent from target forces a reset, except in lenient mode when
// it was chosen after an axis of target: re-choosing that outer axis
// supersedes it, and the traversal chooses it again before reading.
func (d *Driver) mustReset(target model.Selection, lenient bool) bool {
	if d.tainted {
		return true
	}
	outerSeen := false
	for _, h := range d.held.Choices() {
		if target.Has(h.Axis) {
			outerSeen = true
			continue
		}
		if !(lenient && outerSeen) {
			return true
		}
	}
	return false
}

// ensure brings the page to selection at, re-choosing everything past the
// prefix it shares with the applied choices.
func (d *Driver) ensure(ctx context.Context, at model.Selection, reset bool) error {
	if reset {
		d.logger.Debug("reloading page", "selection", at.String(), "held", d.held.String())
		if err := d.Reset(ctx); err != nil {
			return err
		}
	}
	n := d.applied.CommonPrefix(at)
	if n == at.Len() {
		return nil
	}
	d.isStable = false
	for i := n; i < at.Len(); i++ {
		c := at.At(i)
		if err := d.choose(ctx, at.Prefix(i), c.Axis, c.Value); err != nil {
			return err
		}
		d.pending = at.Prefix(i + 1)
		if _, err := d.WaitStable(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) choose(ctx context.Context, at model.Selection, axis, value string) error {
	err := d.exec.Do(ctx, "select", func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		return d.page.Choose(ctx, axis, value)
	})
	if err != nil {
		d.tainted = true
		return d.navError("select", axis, value, at, err)
	}
	d.interactions++
	d.applied = at.With(axis, value)
	d.held = d.held.With(axis, value)
	return nil
}

// waitStable polls snapshots until two equal ones lie at least settle apart.
func (d *Driver) waitStable(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, d.stableTimeout)
	defer cancel()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	var (
		last    string
		since   time.Time
		have    bool
		lastErr error
	)
	timeout := func() error {
		if err := parent.Err(); err != nil {
			return err
		}
		if lastErr != nil {
			return fmt.Errorf("%w: not stable within %s: %w", ErrNotReady, d.stableTimeout, lastErr)
		}
		return fmt.Errorf("%w: not stable within %s", ErrNotReady, d.stableTimeout)
	}
	for {
		snap, err := d.page.Snapshot(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return timeout()
		case err != nil && !IsTransient(err):
			return err
		case err != nil:
			lastErr = err
			have = false
		case !have || snap != last:
			last, since, have = snap, time.Now(), true
		case time.Since(since) >= d.settle:
			return nil
		}

		select {
		case <-ctx.Done():
			return timeout()
		case <-ticker.C:
		}
	}
}

func (d *Driver) navError(op, axis, value string, at model.Selection, err error) error {
	if ctxErr := contextErr(err); ctxErr != nil {
		return ctxErr
	}
	attempts := 1
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		attempts = exhausted.Attempts
		err = exhausted.Err
	}
	var nav *NavigationError
	if errors.As(err, &nav) {
		return nav
	}
	return &NavigationError{Op: op, Axis: axis, Value: value, Selection: at, Attempts: attempts, Err: err}
}

// contextErr returns err when the interaction was cancelled rather than
// failed: cancellation is not a navigation failure.
func contextErr(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
