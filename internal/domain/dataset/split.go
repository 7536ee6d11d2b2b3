package dataset

import (
	"fmt"
	"math"
	"math/rand"
)

// Split is a seeded train/held-out partition of Samples.
type Split struct {
	Train Samples
	Test  Samples

	// TrainIndex and TestIndex are the source row positions of each partition.
	TrainIndex []int
	TestIndex  []int
}

// TrainTestSplit shuffles row positions with seed and holds out
// round(testRatio*n) rows. The split is not stratified.
func TrainTestSplit(s Samples, testRatio float64, seed int64) (Split, error) {
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("%v: %w", testRatio, ErrInvalidRatio)
	}
	n := s.Len()
	if n == 0 {
		return Split{}, ErrNoSamples
	}
	nTest := int(math.Round(testRatio * float64(n)))
	if nTest >= n {
		return Split{}, fmt.Errorf("%d rows leave no training data: %w", n, ErrNoSamples)
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic seed for reproducible splits
	perm := rng.Perm(n)

	out := Split{
		TestIndex:  append([]int(nil), perm[:nTest]...),
		TrainIndex: append([]int(nil), perm[nTest:]...),
	}
	out.Test = s.subset(out.TestIndex)
	out.Train = s.subset(out.TrainIndex)
	return out, nil
}

func (s Samples) subset(idx []int) Samples {
	out := Samples{
		X: make([][]float64, len(idx)),
		Y: make([]int, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = s.X[j]
		out.Y[i] = s.Y[j]
	}
	return out
}
