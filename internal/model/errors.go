package model

import "errors"

var (
	// ErrIncompleteAssignment is returned by Fold when a result does not
	// assign a value to every dataset axis.
	ErrIncompleteAssignment = errors.New("result does not assign every dataset axis")

	// ErrCorruptDataset is returned when a stored dataset cannot be restored.
	ErrCorruptDataset = errors.New("corrupt dataset")
)
