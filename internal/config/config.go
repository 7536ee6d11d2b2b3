// Package config defines service and trainer configuration and their loading.
//
// Conventions:
// - Provide New/NewTrainer initializers that return defaults.
// - Loading layers defaults, an optional YAML file and ASDSCREEN_* env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
)

// Default values shared by the server and the trainer.
const (
	DefaultAddr        = ":5000"
	DefaultModelPath   = "model/rf_model.json"
	DefaultDatasetPath = "Toddler Autism dataset July 2018.csv"
	DefaultLogLevel    = "info"
	DefaultCacheSize   = 1024
	DefaultTestRatio   = 0.2
	DefaultSeed        = 42
	DefaultTrees       = 100
)

// Config contains the prediction server configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, also writes logs to a rotated file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// ModelPath locates the trained forest artifact.
	ModelPath string `koanf:"model_path"`

	// SeverityEnabled adds the severity band to prediction responses.
	SeverityEnabled bool `koanf:"severity_enabled"`

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// CacheSize bounds the prediction memo; 0 disables it.
	CacheSize int `koanf:"cache_size"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        DefaultLogLevel,
		Addr:            DefaultAddr,
		ModelPath:       DefaultModelPath,
		SeverityEnabled: true,
		AllowedOrigins:  []string{"*"},
		CacheSize:       DefaultCacheSize,
	}
}

// TrainerConfig contains the offline trainer configuration.
type TrainerConfig struct {
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	// DatasetPath is the labelled CSV to train on.
	DatasetPath string `koanf:"dataset_path"`

	// ModelPath is where the artifact is written.
	ModelPath string `koanf:"model_path"`

	// TestRatio is the held-out share, in (0,1).
	TestRatio float64 `koanf:"test_ratio"`

	// Seed drives the split, bootstrap sampling and feature selection.
	Seed int64 `koanf:"seed"`

	// Trees is the ensemble size.
	Trees int `koanf:"trees"`

	// MaxDepth limits tree depth; 0 grows until leaves are pure.
	MaxDepth int `koanf:"max_depth"`

	// MinSamplesLeaf is the smallest number of rows a leaf may hold.
	MinSamplesLeaf int `koanf:"min_samples_leaf"`

	// Workers bounds parallel tree fitting.
	Workers int `koanf:"workers"`
}

// NewTrainer creates a TrainerConfig with defaults.
func NewTrainer(_ context.Context) *TrainerConfig {
	return &TrainerConfig{
		LogLevel:       DefaultLogLevel,
		DatasetPath:    DefaultDatasetPath,
		ModelPath:      DefaultModelPath,
		TestRatio:      DefaultTestRatio,
		Seed:           DefaultSeed,
		Trees:          DefaultTrees,
		MinSamplesLeaf: 1,
		Workers:        runtime.NumCPU(),
	}
}
