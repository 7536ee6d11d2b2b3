package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrNoHeader        = errors.New("dataset has no header row")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrMissingColumn   = errors.New("required column missing")
	ErrNoSamples       = errors.New("no usable samples")
	ErrInvalidRatio    = errors.New("test ratio must be in (0,1)")
)
