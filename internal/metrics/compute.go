// Package metrics scores binary classifier output on a held-out split.
package metrics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrLengthMismatch is returned when targets and scores are not aligned.
var ErrLengthMismatch = errors.New("targets and scores differ in length")

// ConfusionMatrix counts binary outcomes.
type ConfusionMatrix struct {
	TN, FP, FN, TP int
}

// ClassReport is the per-class precision/recall line.
type ClassReport struct {
	Class     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Evaluation holds the held-out metrics of one model.
type Evaluation struct {
	Samples   int
	Positives int
	Threshold float64

	Accuracy  float64
	Precision float64 // of the positive class
	Recall    float64
	F1        float64
	ROCAUC    float64

	Confusion ConfusionMatrix
	Classes   []ClassReport // class 0 then class 1

	// ROC curve points ordered by rising false positive rate. Empty when
	// only one class is present.
	FPR []float64
	TPR []float64

	// Token-level view, set only when addresses are given: the share of
	// tokens with at least one positive row that got at least one positive
	// prediction.
	Tokens      int
	TokenRecall float64
}

// Evaluate scores probabilities against binary targets at threshold.
// addresses may be nil; otherwise it must align with y.
func Evaluate(y []int, proba []float64, threshold float64, addresses []string) (*Evaluation, error) {
	if len(y) != len(proba) || (addresses != nil && len(addresses) != len(y)) {
		return nil, fmt.Errorf("%w: %d targets, %d scores", ErrLengthMismatch, len(y), len(proba))
	}

	pred := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			pred[i] = 1
		}
	}

	cm := computeConfusion(y, pred)
	ev := &Evaluation{
		Samples:   len(y),
		Positives: cm.TP + cm.FN,
		Threshold: threshold,
		Accuracy:  safeDiv(float64(cm.TP+cm.TN), float64(len(y))),
		Confusion: cm,
	}
	ev.ROCAUC, ev.FPR, ev.TPR = computeROC(y, proba)

	neg := classReport(0, cm.TN, cm.FN, cm.FP)
	pos := classReport(1, cm.TP, cm.FP, cm.FN)
	ev.Classes = []ClassReport{neg, pos}
	ev.Precision, ev.Recall, ev.F1 = pos.Precision, pos.Recall, pos.F1

	if addresses != nil {
		ev.Tokens, ev.TokenRecall = computeTokenRecall(addresses, y, pred)
	}
	return ev, nil
}

// computeConfusion counts prediction outcomes. Any nonzero value is class 1.
func computeConfusion(y, pred []int) ConfusionMatrix {
	var cm ConfusionMatrix
	for i := range y {
		switch {
		case y[i] != 0 && pred[i] != 0:
			cm.TP++
		case y[i] != 0:
			cm.FN++
		case pred[i] != 0:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm
}

// classReport builds one class line from its true hits, false hits and
// misses. Zero denominators give 0.
func classReport(class, hits, falseHits, misses int) ClassReport {
	precision := safeDiv(float64(hits), float64(hits+falseHits))
	recall := safeDiv(float64(hits), float64(hits+misses))
	return ClassReport{
		Class:     class,
		Precision: precision,
		Recall:    recall,
		F1:        safeDiv(2*precision*recall, precision+recall),
		Support:   hits + misses,
	}
}

// computeROC builds the ROC curve and integrates it with the trapezoidal
// rule. With a single class present the curve is undefined and the area is
// 0.5.
func computeROC(y []int, scores []float64) (auc float64, fpr, tpr []float64) {
	n := len(y)
	if n == 0 {
		return 0.5, nil, nil
	}

	s := make([]float64, n)
	copy(s, scores)
	classes := make([]bool, n)
	pos := 0
	for i, v := range y {
		classes[i] = v != 0
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return 0.5, nil, nil
	}

	stat.SortWeightedLabeled(s, classes, nil)
	tpr, fpr, _ = stat.ROC(nil, s, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), fpr, tpr
}

// computeTokenRecall groups rows by token. A token is a hit when it has at
// least one positive row and at least one positive prediction.
// Returns (tokens with a positive row, hits / tokens).
func computeTokenRecall(addresses []string, y, pred []int) (int, float64) {
	actual := make(map[string]bool)
	flagged := make(map[string]bool)
	for i, addr := range addresses {
		if y[i] != 0 {
			actual[addr] = true
		}
		if pred[i] != 0 {
			flagged[addr] = true
		}
	}

	hits := 0
	for addr := range actual {
		if flagged[addr] {
			hits++
		}
	}
	return len(actual), safeDiv(float64(hits), float64(len(actual)))
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
