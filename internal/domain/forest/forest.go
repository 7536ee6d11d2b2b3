// Package forest implements a random forest of CART classifiers: seeded
// bootstrap sampling, random feature subsets per split and probability
// averaging across trees.
package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default forest configuration constants.
const (
	defaultTrees          = 100
	defaultSeed           = 42
	defaultMinSamplesLeaf = 1
	binaryClasses         = 2
)

// Params are the hyper-parameters a forest was fitted with.
type Params struct {
	Trees          int   `json:"trees"`
	Seed           int64 `json:"seed"`
	MaxDepth       int   `json:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf"`
	MaxFeatures    int   `json:"max_features"`
}

// Forest is an ensemble of decision trees. A fitted Forest is read-only and
// safe for concurrent PredictProba calls.
type Forest struct {
	Version      int       `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Classes      int       `json:"n_classes"`
	Params       Params    `json:"params"`
	TrainedAt    time.Time `json:"trained_at"`
	TrainRows    int       `json:"train_rows"`
	Trees        []Tree    `json:"trees"`

	workers int
}

// Option applies a configuration option to the Forest.
type Option func(*Forest)

// WithTrees sets the number of trees.
func WithTrees(n int) Option {
	return func(f *Forest) {
		if n > 0 {
			f.Params.Trees = n
		}
	}
}

// WithSeed sets the random seed used for bootstrapping and feature draws.
func WithSeed(seed int64) Option {
	return func(f *Forest) {
		f.Params.Seed = seed
	}
}

// WithMaxDepth limits tree depth. Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *Forest) {
		if depth >= 0 {
			f.Params.MaxDepth = depth
		}
	}
}

// WithMinSamplesLeaf sets the minimum number of rows in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *Forest) {
		if n > 0 {
			f.Params.MinSamplesLeaf = n
		}
	}
}

// WithWorkers bounds the number of trees fitted concurrently.
func WithWorkers(n int) Option {
	return func(f *Forest) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithFeatureNames records the feature contract in the artifact.
func WithFeatureNames(names []string) Option {
	return func(f *Forest) {
		f.FeatureNames = append([]string(nil), names...)
	}
}

// New creates an unfitted forest.
func New(opts ...Option) *Forest {
	f := &Forest{
		Version: FormatVersion,
		Classes: binaryClasses,
		Params: Params{
			Trees:          defaultTrees,
			Seed:           defaultSeed,
			MinSamplesLeaf: defaultMinSamplesLeaf,
		},
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows the trees on x (rows of features) and y (class labels 0/1).
// Per-tree seeds are drawn up front, so the result does not depend on the
// number of workers.
func (f *Forest) Fit(ctx context.Context, x [][]float64, y []int) error {
	if len(x) == 0 || len(y) == 0 {
		return ErrEmptyDataset
	}
	if len(x) != len(y) {
		return fmt.Errorf("%d rows vs %d labels: %w", len(x), len(y), ErrShapeMismatch)
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("zero-width rows: %w", ErrShapeMismatch)
	}
	if len(f.FeatureNames) > 0 && width != len(f.FeatureNames) {
		return fmt.Errorf("rows have %d features, want %d: %w", width, len(f.FeatureNames), ErrShapeMismatch)
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), width, ErrShapeMismatch)
		}
	}
	for i, label := range y {
		if label < 0 || label >= f.Classes {
			return fmt.Errorf("row %d label %d: %w", i, label, ErrInvalidLabel)
		}
	}

	f.Params.MaxFeatures = maxFeatures(width)
	master := rand.New(rand.NewSource(f.Params.Seed)) //nolint:gosec // deterministic seed for reproducible training
	seeds := make([]int64, f.Params.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, f.Params.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("fit cancelled: %w", err)
			}
			rng := rand.New(rand.NewSource(seeds[i])) //nolint:gosec // deterministic seed for reproducible training
			b := &treeBuilder{
				x:              x,
				y:              y,
				classes:        f.Classes,
				maxFeatures:    f.Params.MaxFeatures,
				maxDepth:       f.Params.MaxDepth,
				minSamplesLeaf: f.Params.MinSamplesLeaf,
				rng:            rng,
			}
			trees[i] = b.grow(bootstrap(rng, len(x)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Trees = trees
	f.TrainRows = len(x)
	f.TrainedAt = time.Now().UTC()
	return nil
}

// PredictProba returns the class distribution averaged over all trees.
// Index 1 is the positive class.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if len(f.FeatureNames) > 0 && len(x) != len(f.FeatureNames) {
		return nil, fmt.Errorf("got %d features, want %d: %w", len(x), len(f.FeatureNames), ErrShapeMismatch)
	}
	sum := make([]float64, f.Classes)
	for i := range f.Trees {
		probs, err := f.Trees[i].predict(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, p := range probs {
			sum[c] += p
		}
	}
	n := float64(len(f.Trees))
	for c := range sum {
		sum[c] /= n
	}
	return sum, nil
}

// Predict returns the most probable class for x.
func (f *Forest) Predict(x []float64) (int, error) {
	probs, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for c := range probs {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best, nil
}

// CheckFeatures verifies the artifact was trained on exactly the given
// feature names, in order.
func (f *Forest) CheckFeatures(names []string) error {
	if len(f.FeatureNames) != len(names) {
		return fmt.Errorf("artifact has %d features, want %d: %w", len(f.FeatureNames), len(names), ErrIncompatible)
	}
	for i := range names {
		if f.FeatureNames[i] != names[i] {
			return fmt.Errorf("feature %d is %q, want %q: %w", i, f.FeatureNames[i], names[i], ErrIncompatible)
		}
	}
	return nil
}

// bootstrap draws n row indices with replacement.
func bootstrap(rng *rand.Rand, n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = rng.Intn(n)
	}
	return rows
}

// maxFeatures is the sqrt(width) rule used for classification forests.
func maxFeatures(width int) int {
	m := int(math.Sqrt(float64(width)))
	if m < 1 {
		return 1
	}
	return m
}
