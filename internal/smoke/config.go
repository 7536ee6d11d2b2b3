// Package smoke drives a running screening service with generated payloads
// and checks every response against the screening rules.
package smoke

import (
	"errors"
	"time"
)

// Defaults used by the smoke command.
const (
	DefaultBaseURL  = "http://localhost:5000"
	DefaultRequests = 500
	DefaultSeed     = 42
	DefaultTimeout  = 10 * time.Second

	workerChannelMultiplier = 2
	percentageMultiplier    = 100
)

// ErrVerification is returned by Run when any response broke an invariant.
var ErrVerification = errors.New("smoke verification failed")

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Requests int           // Number of generated payloads to submit
	Workers  int           // Number of concurrent workers
	Seed     int64         // Seed for payload generation
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Log every failure instead of the first few
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Passed     int
	Failed     int
	Positive   int
	Negative   int
	Rejections int // missing-field probes answered with 400 as expected
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
