package metrics

import (
	"errors"
	"fmt"
)

// Confusion is a 2x2 confusion matrix indexed [actual][predicted].
type Confusion [2][2]int

// Total is the number of evaluated samples.
func (c Confusion) Total() int {
	return c[0][0] + c[0][1] + c[1][0] + c[1][1]
}

// Report holds the standard binary classification metrics for one evaluation.
// Precision/recall/F1 are for the positive (sarcastic) class.
type Report struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Confusion Confusion
}

// Evaluate compares predictions against ground truth.
func Evaluate(actual, predicted []int) (Report, error) {
	if len(actual) != len(predicted) {
		return Report{}, fmt.Errorf("%d labels vs %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Report{}, errors.New("nothing to evaluate")
	}
	var r Report
	for i := range actual {
		a, p := actual[i], predicted[i]
		if a != 0 && a != 1 || p != 0 && p != 1 {
			return Report{}, fmt.Errorf("sample %d: labels must be binary, got actual=%d predicted=%d", i, a, p)
		}
		r.Confusion[a][p]++
	}
	tp := float64(r.Confusion[1][1])
	fp := float64(r.Confusion[0][1])
	fn := float64(r.Confusion[1][0])
	tn := float64(r.Confusion[0][0])

	r.Accuracy = (tp + tn) / float64(len(actual))
	if tp+fp > 0 {
		r.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		r.Recall = tp / (tp + fn)
	}
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	return r, nil
}
