package config

import "errors"

// Sentinel kinds returned by Load and LoadTrainer.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
