package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and SiteConfig.Validate so
// callers can use errors.Is for programmatic handling.
var (
	// ErrNoTarget is returned when no target page URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a page URL or use --list")

	// ErrAxisCount is returned when the number of axes is not exactly three.
	ErrAxisCount = errors.New("exactly three axes are required")

	// ErrDuplicateAxis is returned when an axis is requested twice.
	ErrDuplicateAxis = errors.New("duplicate axis")

	// ErrUnknownAxis is returned when a requested axis has no control in the
	// site configuration.
	ErrUnknownAxis = errors.New("axis has no configured control")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidAttempts is returned when the retry budget is not positive.
	ErrInvalidAttempts = errors.New("invalid attempts: must be positive")

	// ErrInvalidDelay is returned when a delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidSampleLimit is returned when the sample limit is not positive.
	ErrInvalidSampleLimit = errors.New("invalid sample limit: must be positive")

	// ErrInvalidRevisit is returned when the revisit count is negative.
	ErrInvalidRevisit = errors.New("invalid revisit count: must be non-negative")

	// ErrUnknownFormat is returned for an unsupported report format.
	ErrUnknownFormat = errors.New("unknown report format")

	// ErrFormatNeedsFile is returned for binary formats written to stdout.
	ErrFormatNeedsFile = errors.New("report format needs an output file: use --output")

	// ErrInvalidFixedBreakdown is returned when the fixed breakdown axis is
	// not one of the requested axes.
	ErrInvalidFixedBreakdown = errors.New("fixed breakdown axis is not a requested axis")
)
