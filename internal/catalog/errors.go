package catalog

import "errors"

// ErrUnknownAxis is returned when a catalog has no definition for an axis.
var ErrUnknownAxis = errors.New("unknown axis")
