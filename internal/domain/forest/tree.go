package forest

import (
	"fmt"
	"math/rand"
	"sort"
)

// TreeNode is one node of a fitted tree. Nodes are stored in pre-order, so a
// child index is always greater than its parent's.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold,omitempty"`
	LeftChild  int       `json:"left_child,omitempty"`
	RightChild int       `json:"right_child,omitempty"`
	Probs      []float64 `json:"probs,omitempty"`
	IsLeaf     bool      `json:"is_leaf,omitempty"`
}

// Tree is a CART classifier using Gini impurity.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// predict walks the tree and returns the class distribution of the reached leaf.
func (t *Tree) predict(x []float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Probs, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(x) {
			return nil, fmt.Errorf("feature index %d out of range: %w", node.FeatureIdx, ErrShapeMismatch)
		}
		if x[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(t.Nodes) {
			return nil, fmt.Errorf("invalid child index %d: %w", idx, ErrCorrupt)
		}
	}
}

// validate checks structural integrity of a decoded tree.
func (t *Tree) validate(features, classes int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree: %w", ErrCorrupt)
	}
	for i, n := range t.Nodes {
		if n.IsLeaf {
			if len(n.Probs) != classes {
				return fmt.Errorf("node %d: %d class probabilities, want %d: %w", i, len(n.Probs), classes, ErrCorrupt)
			}
			continue
		}
		if n.FeatureIdx < 0 || n.FeatureIdx >= features {
			return fmt.Errorf("node %d: feature index %d: %w", i, n.FeatureIdx, ErrCorrupt)
		}
		if n.LeftChild <= i || n.LeftChild >= len(t.Nodes) || n.RightChild <= i || n.RightChild >= len(t.Nodes) {
			return fmt.Errorf("node %d: children %d/%d: %w", i, n.LeftChild, n.RightChild, ErrCorrupt)
		}
	}
	return nil
}

// treeBuilder grows a single tree over a (possibly bootstrapped) row index set.
type treeBuilder struct {
	x              [][]float64
	y              []int
	classes        int
	maxFeatures    int
	maxDepth       int
	minSamplesLeaf int
	rng            *rand.Rand
	nodes          []TreeNode
}

type sortedRow struct {
	value float64
	label int
}

func (b *treeBuilder) grow(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.build(rows, 0)
	return Tree{Nodes: append([]TreeNode(nil), b.nodes...)}
}

func (b *treeBuilder) build(rows []int, depth int) int {
	counts := b.classCounts(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{})

	if b.isTerminal(rows, counts, depth) {
		b.nodes[idx] = b.leaf(counts, len(rows))
		return idx
	}
	feature, threshold, ok := b.bestSplit(rows, counts)
	if !ok {
		b.nodes[idx] = b.leaf(counts, len(rows))
		return idx
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = TreeNode{
		FeatureIdx: feature,
		Threshold:  threshold,
		LeftChild:  l,
		RightChild: r,
	}
	return idx
}

func (b *treeBuilder) isTerminal(rows []int, counts []int, depth int) bool {
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return true
	}
	if len(rows) < 2*b.minSamplesLeaf {
		return true
	}
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func (b *treeBuilder) leaf(counts []int, total int) TreeNode {
	probs := make([]float64, b.classes)
	if total > 0 {
		for c, n := range counts {
			probs[c] = float64(n) / float64(total)
		}
	}
	return TreeNode{FeatureIdx: -1, IsLeaf: true, Probs: probs}
}

func (b *treeBuilder) classCounts(rows []int) []int {
	counts := make([]int, b.classes)
	for _, r := range rows {
		counts[b.y[r]]++
	}
	return counts
}

// bestSplit draws features in random order and evaluates up to maxFeatures
// non-constant ones, returning the split with the lowest weighted Gini.
func (b *treeBuilder) bestSplit(rows []int, counts []int) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := 0.0

	sorted := make([]sortedRow, len(rows))
	visited := 0
	for _, feature := range b.rng.Perm(len(b.x[0])) {
		if visited >= b.maxFeatures {
			break
		}
		for i, r := range rows {
			sorted[i] = sortedRow{value: b.x[r][feature], label: b.y[r]}
		}
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].value < sorted[j].value })
		if sorted[0].value == sorted[len(sorted)-1].value {
			continue
		}
		visited++

		threshold, impurity, ok := b.scanFeature(sorted, counts)
		if !ok {
			continue
		}
		if bestFeature == -1 || impurity < bestImpurity {
			bestFeature = feature
			bestThreshold = threshold
			bestImpurity = impurity
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// scanFeature sweeps sorted values once, maintaining left/right class counts.
func (b *treeBuilder) scanFeature(sorted []sortedRow, total []int) (float64, float64, bool) {
	n := len(sorted)
	left := make([]int, b.classes)
	right := append([]int(nil), total...)

	found := false
	bestThreshold := 0.0
	bestImpurity := 0.0
	for i := 0; i < n-1; i++ {
		left[sorted[i].label]++
		right[sorted[i].label]--
		if sorted[i].value == sorted[i+1].value {
			continue
		}
		nl, nr := i+1, n-i-1
		if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
			continue
		}
		impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		if !found || impurity < bestImpurity {
			found = true
			bestImpurity = impurity
			bestThreshold = midpoint(sorted[i].value, sorted[i+1].value)
		}
	}
	return bestThreshold, bestImpurity, found
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		impurity -= p * p
	}
	return impurity
}

// midpoint keeps the threshold strictly below hi even when the two values are
// adjacent floats.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi {
		return lo
	}
	return m
}
