package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrInvalidSplit is returned for a test size outside (0, 1).
var ErrInvalidSplit = errors.New("test size must be in (0, 1)")

// Balancing strategies.
const (
	BalanceOversample = "oversample"
	BalanceWeight     = "weight"
	BalanceNone       = "none"
)

// RandomOverSample duplicates randomly drawn minority rows until both
// classes have the same count. Original rows come first. A dataset with a
// single class is returned unchanged (as a copy).
func RandomOverSample(d *Dataset, seed int64) *Dataset {
	neg, pos := d.classIndex()

	idx := make([]int, 0, 2*max(len(neg), len(pos)))
	for i := range d.Y {
		idx = append(idx, i)
	}
	if len(neg) == 0 || len(pos) == 0 || len(neg) == len(pos) {
		return d.Subset(idx)
	}

	minority := pos
	deficit := len(neg) - len(pos)
	if deficit < 0 {
		minority = neg
		deficit = -deficit
	}

	rng := rand.New(rand.NewSource(seed))
	for k := 0; k < deficit; k++ {
		idx = append(idx, minority[rng.Intn(len(minority))])
	}
	return d.Subset(idx)
}

// ClassWeights returns per-row weights n / (2 * count(class)), so both
// classes carry equal total weight. Single-class input gets weight 1.
func ClassWeights(y []int) []float64 {
	var counts [2]int
	for _, v := range y {
		counts[v]++
	}
	w := make([]float64, len(y))
	for i, v := range y {
		if counts[0] == 0 || counts[1] == 0 {
			w[i] = 1
			continue
		}
		w[i] = float64(len(y)) / (2 * float64(counts[v]))
	}
	return w
}

// StratifiedSplit shuffles each class with seed and moves round(testSize *
// count) rows of it to the test set. A class with at least two rows keeps
// at least one row on each side. Both sets keep the original row order.
func StratifiedSplit(d *Dataset, testSize float64, seed int64) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSplit, testSize)
	}
	if d.Len() == 0 {
		return nil, nil, ErrEmptyDataset
	}

	rng := rand.New(rand.NewSource(seed))
	neg, pos := d.classIndex()

	var trainIdx, testIdx []int
	for _, class := range [][]int{neg, pos} {
		shuffled := make([]int, len(class))
		copy(shuffled, class)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		n := len(shuffled)
		nTest := int(math.Round(testSize * float64(n)))
		if n >= 2 {
			nTest = min(max(nTest, 1), n-1)
		}
		testIdx = append(testIdx, shuffled[:nTest]...)
		trainIdx = append(trainIdx, shuffled[nTest:]...)
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return d.Subset(trainIdx), d.Subset(testIdx), nil
}
