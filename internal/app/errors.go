package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrModelUnavailable means the artifact could not be loaded at startup.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelFailure means the classifier failed while scoring a valid input.
	ErrModelFailure = errors.New("model failure")
	// ErrNotStarted is returned by Predict before Start succeeded.
	ErrNotStarted = errors.New("service not started")
)
