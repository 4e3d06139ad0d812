// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/hed1ad/gasguard/pkg/detectors"
)

// formatVersion is bumped whenever the persisted layout changes.
const formatVersion = 1

// eulerGamma is the Euler-Mascheroni constant used by the harmonic approximation.
const eulerGamma = 0.5772156649

var (
	// ErrNotTrained is returned when scoring is attempted before Fit or Load.
	ErrNotTrained = errors.New("model not trained")
	// ErrEmptyData is returned when Fit receives no samples.
	ErrEmptyData = errors.New("empty training data")
	// ErrFeatureMismatch is returned when a sample's width differs from the training width.
	ErrFeatureMismatch = errors.New("feature count does not match model")
)

var _ detectors.Detector = (*IsolationForest)(nil)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	maxDepth      int
	rng           *rand.Rand

	// Trained model
	trees     []*iTree
	nFeatures int
	trained   bool

	// Statistics from training
	avgPathLength float64
}

// iTree represents a single isolation tree.
type iTree struct {
	root *node
}

// node is a node in the isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	splitFeature int
	splitValue   float64

	// Children
	left  *node
	right *node

	// Leaf information
	size int // number of samples that reached this leaf
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// FromConfig translates a detectors.Config into options.
func FromConfig(cfg detectors.Config) []Option {
	return []Option{
		WithTrees(cfg.Trees),
		WithSampleSize(cfg.SampleSize),
		WithContamination(cfg.Contamination),
		WithSeed(cfg.RandomSeed),
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.1,
		threshold:     0.5,
		rng:           rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	// Max depth based on sample size
	f.maxDepth = depthLimit(f.sampleSize)

	return f
}

// Fit trains the Isolation Forest on the provided data.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return ErrEmptyData
	}
	if f.nTrees <= 0 {
		return errors.Errorf("invalid number of trees: %d", f.nTrees)
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return errors.Errorf("row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize <= 0 || sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.maxDepth = depthLimit(sampleSize)

	// Build trees
	f.trees = make([]*iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		f.trees[i] = f.buildTree(sample, nFeatures, 0)
	}

	// Calculate average path length for normalization
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.nFeatures = nFeatures
	f.trained = true

	// Set threshold based on contamination
	if f.contamination > 0 {
		scores, err := f.scoreSamples(data)
		if err != nil {
			return err
		}
		f.threshold = percentile(scores, 100*(1-f.contamination))
	}

	return nil
}

// buildTree recursively builds an isolation tree.
func (f *IsolationForest) buildTree(data [][]float64, nFeatures, depth int) *iTree {
	return &iTree{
		root: f.buildNode(data, nFeatures, depth),
	}
}

func (f *IsolationForest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)

	// Terminal conditions
	if depth >= f.maxDepth || n <= 1 {
		return &node{size: n}
	}

	// Random feature and split value
	feature := f.rng.Intn(nFeatures)

	// Find min/max for this feature
	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		if row[feature] < minVal {
			minVal = row[feature]
		}
		if row[feature] > maxVal {
			maxVal = row[feature]
		}
	}

	// If all values are the same, return leaf
	if minVal == maxVal {
		return &node{size: n}
	}

	// Random split value
	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         f.buildNode(leftData, nFeatures, depth+1),
		right:        f.buildNode(rightData, nFeatures, depth+1),
	}
}

// ScoreSamples returns anomaly scores for the given samples.
func (f *IsolationForest) ScoreSamples(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	return f.scoreSamples(data)
}

// Predict labels each sample Outlier when its score reaches the threshold, Inlier otherwise.
func (f *IsolationForest) Predict(data [][]float64) ([]int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	scores, err := f.scoreSamples(data)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(scores))
	for i, score := range scores {
		if score >= f.threshold {
			labels[i] = detectors.Outlier
		} else {
			labels[i] = detectors.Inlier
		}
	}
	return labels, nil
}

func (f *IsolationForest) scoreSamples(data [][]float64) ([]float64, error) {
	scores := make([]float64, len(data))

	for i, sample := range data {
		if len(sample) != f.nFeatures {
			return nil, errors.Wrapf(ErrFeatureMismatch, "sample %d has %d features, model expects %d", i, len(sample), f.nFeatures)
		}
		scores[i] = f.scoreOne(sample)
	}

	return scores, nil
}

func (f *IsolationForest) scoreOne(sample []float64) float64 {
	// Average path length across all trees
	var totalPath float64
	for _, tree := range f.trees {
		totalPath += pathLength(sample, tree.root, 0)
	}
	avgPath := totalPath / float64(len(f.trees))

	if f.avgPathLength == 0 {
		return 0.5
	}

	// Anomaly score: 2^(-avgPath / c(n))
	// Higher score = more anomalous
	return math.Pow(2, -avgPath/f.avgPathLength)
}

// pathLength calculates the path length for a sample in a tree.
func pathLength(sample []float64, n *node, currentDepth int) float64 {
	if n.left == nil && n.right == nil {
		// Leaf node: add expected path length for remaining isolation
		return float64(currentDepth) + averagePathLength(float64(n.size))
	}

	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, currentDepth+1)
	}
	return pathLength(sample, n.right, currentDepth+1)
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H(i) ~ ln(i) + gamma
	return 2*(math.Log(n-1)+eulerGamma) - 2*(n-1)/n
}

func depthLimit(sampleSize int) int {
	if sampleSize < 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(sampleSize))))
}

// persistedNode is a flattened tree node; Left and Right are indexes, -1 on leaves.
type persistedNode struct {
	Feature int
	Value   float64
	Left    int
	Right   int
	Size    int
}

// persistedForest is the gob layout written by Save.
type persistedForest struct {
	Version       int
	Trees         int
	SampleSize    int
	Features      int
	Contamination float64
	Threshold     float64
	AvgPathLength float64
	Nodes         [][]persistedNode
}

// Save serializes the trained model as a snappy-compressed gob stream.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, ErrNotTrained
	}

	pf := persistedForest{
		Version:       formatVersion,
		Trees:         f.nTrees,
		SampleSize:    f.sampleSize,
		Features:      f.nFeatures,
		Contamination: f.contamination,
		Threshold:     f.threshold,
		AvgPathLength: f.avgPathLength,
		Nodes:         make([][]persistedNode, len(f.trees)),
	}
	for i, tree := range f.trees {
		pf.Nodes[i] = flatten(tree.root, nil)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&pf); err != nil {
		return nil, errors.Wrap(err, "encode forest")
	}

	return snappy.Encode(nil, buf.Bytes()), nil
}

// Load deserializes a model written by Save.
func (f *IsolationForest) Load(data []byte) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return errors.Wrap(err, "decompress forest")
	}

	var pf persistedForest
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&pf); err != nil {
		return errors.Wrap(err, "decode forest")
	}
	if pf.Version != formatVersion {
		return errors.Errorf("unsupported model format version %d", pf.Version)
	}
	if len(pf.Nodes) == 0 {
		return errors.New("model contains no trees")
	}

	trees := make([]*iTree, len(pf.Nodes))
	for i, nodes := range pf.Nodes {
		root, err := unflatten(nodes)
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		trees[i] = &iTree{root: root}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = pf.Trees
	f.sampleSize = pf.SampleSize
	f.nFeatures = pf.Features
	f.contamination = pf.Contamination
	f.threshold = pf.Threshold
	f.avgPathLength = pf.AvgPathLength
	f.trees = trees
	f.maxDepth = depthLimit(f.sampleSize)
	f.trained = true

	return nil
}

// flatten appends n and its subtree in pre-order and returns the slice.
func flatten(n *node, out []persistedNode) []persistedNode {
	idx := len(out)
	out = append(out, persistedNode{Feature: n.splitFeature, Value: n.splitValue, Left: -1, Right: -1, Size: n.size})
	if n.left == nil && n.right == nil {
		return out
	}
	out[idx].Left = len(out)
	out = flatten(n.left, out)
	out[idx].Right = len(out)
	return flatten(n.right, out)
}

func unflatten(nodes []persistedNode) (*node, error) {
	if len(nodes) == 0 {
		return nil, errors.New("empty tree")
	}
	built := make([]*node, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		pn := nodes[i]
		n := &node{splitFeature: pn.Feature, splitValue: pn.Value, size: pn.Size}
		if pn.Left >= 0 || pn.Right >= 0 {
			if pn.Left <= i || pn.Right <= i || pn.Left >= len(nodes) || pn.Right >= len(nodes) {
				return nil, errors.Errorf("node %d has invalid children", i)
			}
			n.left, n.right = built[pn.Left], built[pn.Right]
		}
		built[i] = n
	}
	return built[0], nil
}

// NumFeatures returns the feature count the model was trained on.
func (f *IsolationForest) NumFeatures() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nFeatures
}

// Threshold returns the current anomaly threshold.
func (f *IsolationForest) Threshold() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.threshold
}

// SetThreshold updates the anomaly threshold.
func (f *IsolationForest) SetThreshold(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threshold = t
}

// percentile calculates the p-th percentile of the data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}
