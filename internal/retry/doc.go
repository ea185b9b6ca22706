// Package retry provides the bounded-retry executor applied to every page
// interaction.
//
// An Executor runs an operation up to a fixed number of attempts, waiting
// between attempts according to a backoff policy. Only errors accepted by the
// retryable predicate are retried; any other error ends the loop at once.
// When the budget runs out the last error is returned inside an
// ExhaustedError so callers can tell "gave up" from "failed for good".
package retry
