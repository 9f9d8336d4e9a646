package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidParams is returned for unusable booster parameters.
var ErrInvalidParams = errors.New("invalid booster params")

// ErrNotFitted is returned when predicting with an untrained classifier.
var ErrNotFitted = errors.New("classifier is not fitted")

// Params configures the gradient-boosted tree classifier.
type Params struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	Lambda         float64 `json:"lambda"`           // L2 penalty on leaf values
	MinChildWeight float64 `json:"min_child_weight"` // minimum hessian sum per child
}

// DefaultParams returns the booster defaults.
func DefaultParams() Params {
	return Params{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       5,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// Validate checks that params are usable.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("%w: n_estimators %d", ErrInvalidParams, p.NEstimators)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate %v", ErrInvalidParams, p.LearningRate)
	case p.MaxDepth < 1:
		return fmt.Errorf("%w: max_depth %d", ErrInvalidParams, p.MaxDepth)
	case p.Lambda < 0:
		return fmt.Errorf("%w: lambda %v", ErrInvalidParams, p.Lambda)
	case p.MinChildWeight < 0:
		return fmt.Errorf("%w: min_child_weight %v", ErrInvalidParams, p.MinChildWeight)
	}
	return nil
}

// Node is one tree node. Leaves carry Value; splits send x[Feature] <
// Threshold to Left and everything else to Right.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

// Tree is a regression tree stored as a flat node list rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := 0.0
		if n.Feature < len(x) {
			v = x[n.Feature]
		}
		if v < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Classifier is a binary gradient-boosted tree classifier trained on
// logistic loss with second-order leaf values and exact greedy splits.
type Classifier struct {
	Params      Params  `json:"params"`
	NumFeatures int     `json:"num_features"`
	BaseScore   float64 `json:"base_score"` // initial log-odds
	Trees       []Tree  `json:"trees"`
}

// NewClassifier creates an untrained classifier.
func NewClassifier(p Params) (*Classifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{Params: p}, nil
}

// Fit trains the classifier. weights may be nil for unit weights.
func (c *Classifier) Fit(X [][]float64, y []int, weights []float64) error {
	n := len(X)
	if n == 0 {
		return ErrEmptyDataset
	}
	if len(y) != n || (weights != nil && len(weights) != n) {
		return ErrLengthMismatch
	}
	width := len(X[0])
	for i, x := range X {
		if len(x) != width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureMismatch, i, len(x), width)
		}
	}
	w := weights
	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}

	var sw, swy float64
	for i := range y {
		sw += w[i]
		if y[i] == 1 {
			swy += w[i]
		}
	}
	p := clamp(swy/sw, 1e-6, 1-1e-6)

	c.NumFeatures = width
	c.BaseScore = math.Log(p / (1 - p))
	c.Trees = c.Trees[:0]

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = c.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for m := 0; m < c.Params.NEstimators; m++ {
		for i := range margin {
			pi := sigmoid(margin[i])
			grad[i] = w[i] * (pi - float64(y[i]))
			hess[i] = w[i] * math.Max(pi*(1-pi), 1e-16)
		}

		b := &treeBuilder{params: c.Params, x: X, grad: grad, hess: hess}
		b.build(all, 0)
		tree := Tree{Nodes: b.nodes}
		for i := range margin {
			margin[i] += c.Params.LearningRate * tree.predict(X[i])
		}
		c.Trees = append(c.Trees, tree)
	}
	return nil
}

// Margin returns the raw log-odds for x.
func (c *Classifier) Margin(x []float64) float64 {
	s := c.BaseScore
	for i := range c.Trees {
		s += c.Params.LearningRate * c.Trees[i].predict(x)
	}
	return s
}

// PredictProba returns P(y=1 | x).
func (c *Classifier) PredictProba(x []float64) (float64, error) {
	if c.NumFeatures == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != c.NumFeatures {
		return 0, fmt.Errorf("%w: got %d values, want %d", ErrFeatureMismatch, len(x), c.NumFeatures)
	}
	return sigmoid(c.Margin(x)), nil
}

// PredictProbaAll scores every row of X.
func (c *Classifier) PredictProbaAll(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		p, err := c.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Predict returns 1 when P(y=1 | x) >= threshold.
func (c *Classifier) Predict(x []float64, threshold float64) (int, error) {
	p, err := c.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p >= threshold {
		return 1, nil
	}
	return 0, nil
}

// treeBuilder grows one depth-limited tree on the current gradients.
type treeBuilder struct {
	params Params
	x      [][]float64
	grad   []float64
	hess   []float64
	nodes  []Node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) build(idx []int, depth int) int {
	var G, H float64
	for _, i := range idx {
		G += b.grad[i]
		H += b.hess[i]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: -G / (H + b.params.Lambda)})

	if depth >= b.params.MaxDepth || len(idx) < 2 || H < 2*b.params.MinChildWeight {
		return id
	}

	best, ok := b.bestSplit(idx, G, H)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] < best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return id
}

// bestSplit scans every feature for the threshold with the largest
// structure-score gain.
func (b *treeBuilder) bestSplit(idx []int, G, H float64) (split, bool) {
	lambda := b.params.Lambda
	parent := G * G / (H + lambda)

	best := split{gain: 1e-12}
	found := false

	sorted := make([]int, len(idx))
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		var GL, HL float64
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			GL += b.grad[i]
			HL += b.hess[i]

			cur, next := b.x[i][f], b.x[sorted[k+1]][f]
			if cur == next {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < b.params.MinChildWeight || HR < b.params.MinChildWeight {
				continue
			}
			gain := GL*GL/(HL+lambda) + GR*GR/(HR+lambda) - parent
			if gain > best.gain {
				best = split{feature: f, threshold: cur + (next-cur)/2, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
