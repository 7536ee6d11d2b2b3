package forest

import "errors"

// Sentinel kinds for forest errors.
var (
	ErrNotFitted     = errors.New("model not fitted")
	ErrEmptyDataset  = errors.New("features or labels empty")
	ErrShapeMismatch = errors.New("feature shape mismatch")
	ErrInvalidLabel  = errors.New("label outside class range")
	ErrCorrupt       = errors.New("model artifact corrupt")
	ErrIncompatible  = errors.New("model artifact incompatible")
)
