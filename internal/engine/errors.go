package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/nao1215/tabcollate/internal/catalog"
	"github.com/nao1215/tabcollate/internal/driver"
	"github.com/nao1215/tabcollate/internal/extract"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/retry"
	"github.com/nao1215/tabcollate/internal/validate"
)

// ErrInvalidRoute is returned when a fixed route is not a permutation of the axes.
var ErrInvalidRoute = errors.New("route is not a permutation of the axes")

// Classify maps an error to a failure kind.
func Classify(err error) model.FailureKind {
	var (
		dep      *catalog.AxisDependencyError
		nav      *driver.NavigationError
		ext      *extract.ExtractionError
		mismatch *validate.TotalMismatchError
	)
	switch {
	case errors.As(err, &dep):
		return model.FailureAxisDependency
	case errors.As(err, &ext):
		return model.FailureExtraction
	case errors.As(err, &mismatch):
		return model.FailureTotalMismatch
	case errors.As(err, &nav):
		return model.FailureNavigation
	default:
		return model.FailureNavigation
	}
}

// attempts returns the attempt count carried by err, or fallback.
func attempts(err error, fallback int) int {
	var nav *driver.NavigationError
	if errors.As(err, &nav) {
		return nav.Attempts
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return fallback
}

func isCancel(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func oneLine(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
