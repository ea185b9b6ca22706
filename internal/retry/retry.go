package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultAttempts is the default attempt budget, first try included.
	DefaultAttempts = 3

	// DefaultDelay is the default wait between attempts.
	DefaultDelay = 100 * time.Millisecond
)

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	// Name identifies the operation.
	Name string

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the error of the last attempt.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Executor runs operations with bounded retries.
// An Executor is safe for concurrent use; every Do call gets its own backoff.
type Executor struct {
	attempts    int
	delay       time.Duration
	exponential bool
	maxDelay    time.Duration
	retryable   func(error) bool
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithAttempts sets the attempt budget, first try included.
func WithAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// WithDelay sets a constant wait between attempts.
func WithDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.delay = d
			e.exponential = false
		}
	}
}

// WithExponentialDelay doubles the wait after each attempt, starting at
// initial and capped at maxDelay.
func WithExponentialDelay(initial, maxDelay time.Duration) Option {
	return func(e *Executor) {
		e.delay = initial
		e.maxDelay = maxDelay
		e.exponential = true
	}
}

// WithRetryable sets the predicate deciding which errors are transient.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) {
		if fn != nil {
			e.retryable = fn
		}
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an Executor. Without WithRetryable every error is retried.
func New(opts ...Option) *Executor {
	e := &Executor{
		attempts:  DefaultAttempts,
		delay:     DefaultDelay,
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Attempts returns the attempt budget.
func (e *Executor) Attempts() int {
	return e.attempts
}

func (e *Executor) newBackOff() backoff.BackOff {
	if !e.exponential {
		return backoff.NewConstantBackOff(e.delay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.delay
	b.MaxInterval = e.maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempt budget is spent, or ctx is done.
//
// Non-retryable errors are returned as they are. A spent budget returns an
// *ExhaustedError wrapping the last error. Cancellation returns ctx.Err().
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Value(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	var last error

	res, err := backoff.Retry(ctx, func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err
		if !e.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(uint(e.attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.logger.Debug("retrying interaction",
				"operation", name,
				"attempt", attempts,
				"next_in", next,
				"error", err,
			)
		}),
	)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if last != nil && !e.retryable(last) {
		return res, last
	}
	return res, &ExhaustedError{Name: name, Attempts: attempts, Err: last}
}
