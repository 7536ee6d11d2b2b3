// Package service provides the screening prediction service used by the HTTP
// API and the offline trainer that produces its model artifact.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/asdscreen/internal/domain/forest"
	"github.com/okian/asdscreen/internal/domain/screening"
	"github.com/okian/asdscreen/pkg/logger"
	"github.com/okian/asdscreen/pkg/metrics"
)

const (
	defaultModelPath = "model/rf_model.json"
	defaultCacheSize = 1024

	positiveClass = 1
)

// Prober returns a class-probability vector for one feature vector. Index 1
// is the positive class.
type Prober interface {
	PredictProba(x []float64) ([]float64, error)
}

// featureKey is a comparable copy of a feature vector.
type featureKey [screening.FeatureCount]float64

// Service scores screening payloads with a read-only classifier.
type Service struct {
	mu sync.RWMutex

	// Core components
	model Prober
	memo  *lru.Cache[featureKey, float64]

	// Configuration
	modelPath string
	severity  bool
	cacheSize int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModel injects a classifier; Start then skips loading the artifact.
func WithModel(m Prober) Option {
	return func(s *Service) {
		if m != nil {
			s.model = m
		}
	}
}

// WithModelPath sets where Start loads the artifact from.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithSeverity toggles the severity band in results.
func WithSeverity(enabled bool) Option {
	return func(s *Service) {
		s.severity = enabled
	}
}

// WithCacheSize bounds the prediction memo; 0 disables it.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.cacheSize = size
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath: defaultModelPath,
		severity:  true,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the model artifact, unless one was injected, and prepares the
// memo. It is a no-op once started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.model == nil {
		s.logger.Info(ctx, "loading model artifact", logger.String("path", s.modelPath))
		f, err := forest.Load(s.modelPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		if err := f.CheckFeatures(screening.FeatureNames); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrModelUnavailable, s.modelPath, err)
		}
		s.model = f
	}

	if f, ok := s.model.(*forest.Forest); ok {
		metrics.UpdateModelInfo(strconv.Itoa(f.Version), f.TrainedAt.Format(time.RFC3339), len(f.Trees), f.TrainRows)
	}

	if s.cacheSize > 0 {
		memo, err := lru.New[featureKey, float64](s.cacheSize)
		if err != nil {
			return fmt.Errorf("create prediction memo: %w", err)
		}
		s.memo = memo
	}

	s.started = true
	s.logger.Info(ctx, "screening service started",
		logger.Bool("severity", s.severity),
		logger.Int("cacheSize", s.cacheSize),
	)
	return nil
}

// Stop releases the memo. The model stays loaded so a restart is cheap.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.memo != nil {
		s.memo.Purge()
		s.memo = nil
	}
	s.started = false
	s.logger.Info(context.Background(), "screening service stopped")
}

// Predict validates a decoded JSON payload and scores it.
//
// Every rejected field is reported in a screening.ValidationErrors, which
// matches screening.ErrInvalidInput. Classifier failures match
// ErrModelFailure. Identical feature vectors always yield identical results.
func (s *Service) Predict(ctx context.Context, raw map[string]any) (screening.Result, error) {
	s.mu.RLock()
	started, model, memo, severity := s.started, s.model, s.memo, s.severity
	s.mu.RUnlock()

	if !started {
		return screening.Result{}, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return screening.Result{}, err
	}

	in, err := screening.ParseInput(raw)
	if err != nil {
		var verrs screening.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				metrics.RecordValidationFailure(fe.Field, fe.Reason)
			}
		}
		s.logger.Debug(ctx, "rejected screening input", logger.Error(err))
		return screening.Result{}, err
	}

	vec := in.Vector()
	prob, err := s.positiveProbability(model, memo, vec)
	if err != nil {
		metrics.RecordInferenceError()
		metrics.RecordErrorByComponent("service", "model_failure")
		s.logger.Error(ctx, "model failed to score input", logger.Error(err))
		return screening.Result{}, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	res := screening.Evaluate(in, prob, severity)
	metrics.RecordPrediction(res.Prediction, res.Severity, res.Probability)
	s.logger.Debug(ctx, "scored screening input",
		logger.String("prediction", res.Prediction),
		logger.Float64("probability", res.Probability),
		logger.Int("keyFactors", len(res.KeyFactors)),
	)
	return res, nil
}

func (s *Service) positiveProbability(model Prober, memo *lru.Cache[featureKey, float64], vec []float64) (float64, error) {
	var key featureKey
	copy(key[:], vec)

	if memo != nil {
		if p, ok := memo.Get(key); ok {
			metrics.RecordCacheHit()
			return p, nil
		}
		metrics.RecordCacheMiss()
	}

	start := time.Now()
	probs, err := model.PredictProba(vec)
	metrics.RecordInferenceLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		return 0, err
	}
	if len(probs) <= positiveClass {
		return 0, fmt.Errorf("got %d class probabilities, want 2", len(probs))
	}
	p := probs[positiveClass]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("positive probability %v out of range", p)
	}

	if memo != nil {
		memo.Add(key, p)
	}
	return p, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"severityEnabled": s.severity,
		"cacheSize":       s.cacheSize,
		"modelPath":       s.modelPath,
		"features":        screening.FeatureNames,
	}
	if s.memo != nil {
		stats["cacheLength"] = s.memo.Len()
	}
	if f, ok := s.model.(*forest.Forest); ok {
		stats["modelTrees"] = len(f.Trees)
		stats["modelTrainRows"] = f.TrainRows
		stats["modelTrainedAt"] = f.TrainedAt.Format(time.RFC3339)
		stats["modelVersion"] = f.Version
	}
	return stats
}
