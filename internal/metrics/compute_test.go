package metrics

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluate_HandComputed(t *testing.T) {
	y := []int{1, 1, 1, 0, 0, 0, 0, 0}
	proba := []float64{0.9, 0.7, 0.2, 0.6, 0.1, 0.3, 0.4, 0.05}

	ev, err := Evaluate(y, proba, 0.5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := ConfusionMatrix{TN: 4, FP: 1, FN: 1, TP: 2}
	if ev.Confusion != want {
		t.Fatalf("confusion = %+v, want %+v", ev.Confusion, want)
	}
	if !almostEqual(ev.Accuracy, 6.0/8) {
		t.Errorf("accuracy = %v, want 0.75", ev.Accuracy)
	}
	if !almostEqual(ev.Precision, 2.0/3) {
		t.Errorf("precision = %v, want 2/3", ev.Precision)
	}
	if !almostEqual(ev.Recall, 2.0/3) {
		t.Errorf("recall = %v, want 2/3", ev.Recall)
	}
	if !almostEqual(ev.F1, 2.0/3) {
		t.Errorf("f1 = %v, want 2/3", ev.F1)
	}
	// Positive scores {0.9, 0.7, 0.2} vs negatives {0.6, 0.1, 0.3, 0.4, 0.05}:
	// 5 + 5 + 2 winning pairs out of 15.
	if !almostEqual(ev.ROCAUC, 12.0/15) {
		t.Errorf("roc_auc = %v, want 0.8", ev.ROCAUC)
	}
	if ev.Samples != 8 || ev.Positives != 3 {
		t.Errorf("samples/positives = %d/%d, want 8/3", ev.Samples, ev.Positives)
	}

	neg := ev.Classes[0]
	if neg.Support != 5 || !almostEqual(neg.Precision, 0.8) || !almostEqual(neg.Recall, 0.8) {
		t.Errorf("class 0 report = %+v", neg)
	}
}

func TestEvaluate_ZeroDivisionIsZero(t *testing.T) {
	// Nothing predicted positive: precision has a zero denominator.
	ev, err := Evaluate([]int{1, 0, 0}, []float64{0.1, 0.2, 0.3}, 0.5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Precision != 0 || ev.Recall != 0 || ev.F1 != 0 {
		t.Errorf("expected zeros, got p=%v r=%v f1=%v", ev.Precision, ev.Recall, ev.F1)
	}
	if math.IsNaN(ev.F1) {
		t.Error("f1 must not be NaN")
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		y      []int
		scores []float64
		want   float64
	}{
		{"perfect", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, 1},
		{"inverted", []int{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9}, 0},
		{"partial", []int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75},
		{"all tied", []int{0, 1}, []float64{0.5, 0.5}, 0.5},
		{"one class", []int{1, 1, 1}, []float64{0.1, 0.5, 0.9}, 0.5},
		{"empty", nil, nil, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := computeROC(tt.y, tt.scores)
			if !almostEqual(got, tt.want) {
				t.Errorf("computeROC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestROCAUC_DoesNotReorderInput(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5}
	computeROC([]int{1, 0, 0}, scores)
	if scores[0] != 0.9 || scores[1] != 0.1 || scores[2] != 0.5 {
		t.Errorf("input scores were reordered: %v", scores)
	}
}

func TestROCCurve(t *testing.T) {
	_, fpr, tpr := computeROC([]int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
	if len(fpr) != 5 || len(tpr) != 5 {
		t.Fatalf("expected one point per distinct score plus one, got %d/%d", len(fpr), len(tpr))
	}
	if fpr[0] != 0 {
		t.Errorf("curve must start at fpr 0, got %v", fpr[0])
	}
	if fpr[4] != 1 || tpr[4] != 1 {
		t.Errorf("curve must end at (1,1), got (%v,%v)", fpr[4], tpr[4])
	}
	for i := 1; i < len(fpr); i++ {
		if fpr[i] < fpr[i-1] {
			t.Errorf("fpr not ordered at %d: %v", i, fpr)
		}
	}

	ev, err := Evaluate([]int{1, 1}, []float64{0.2, 0.9}, 0.5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.FPR) != 0 {
		t.Errorf("single class must have no curve, got %v", ev.FPR)
	}
}

func TestComputeTokenRecall(t *testing.T) {
	addresses := []string{"a", "a", "b", "b", "c"}
	y := []int{0, 1, 1, 0, 0}
	pred := []int{1, 0, 0, 0, 1}

	tokens, recall := computeTokenRecall(addresses, y, pred)
	if tokens != 2 {
		t.Errorf("expected 2 tokens with events, got %d", tokens)
	}
	// a: flagged on a different row still counts; b: never flagged.
	if recall != 0.5 {
		t.Errorf("expected token recall 0.5, got %v", recall)
	}
}

func TestEvaluate_LengthMismatch(t *testing.T) {
	_, err := Evaluate([]int{1}, []float64{0.1, 0.2}, 0.5, nil)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	_, err = Evaluate([]int{1}, []float64{0.1}, 0.5, []string{"a", "b"})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}
