package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableEmbeddings puts class 1 in the positive orthant and class 0 in the
// negative one, far enough apart that a small MLP must separate them.
func separableEmbeddings(n, width int) ([][]float32, []int) {
	embeddings := make([][]float32, n)
	labels := make([]int, n)
	for i := range embeddings {
		vec := make([]float32, width)
		sign := float32(-1)
		if i%2 == 0 {
			sign = 1
			labels[i] = 1
		}
		for j := range vec {
			vec[j] = sign * (1 + float32(i%5)*0.1)
		}
		embeddings[i] = vec
	}
	return embeddings, labels
}

func TestMLPFitAndPredict(t *testing.T) {
	embeddings, labels := separableEmbeddings(40, 8)
	clf := NewMLPClassifier(8, MLPConfig{Seed: 3})
	require.NoError(t, clf.Fit(embeddings, labels))
	assert.Positive(t, clf.Iters)

	predicted, err := clf.PredictBatch(embeddings)
	require.NoError(t, err)
	var correct int
	for i, p := range predicted {
		if p == labels[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 36, "separable data should be near-perfect")
}

func TestMLPPredictBeforeFit(t *testing.T) {
	clf := NewMLPClassifier(8, MLPConfig{})
	_, err := clf.Predict(make([]float32, 8))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestMLPRejectsWrongWidth(t *testing.T) {
	embeddings, labels := separableEmbeddings(10, 8)
	clf := NewMLPClassifier(8, MLPConfig{Seed: 1})
	require.NoError(t, clf.Fit(embeddings, labels))

	_, err := clf.Predict(make([]float32, 4))
	assert.Error(t, err)

	bad := NewMLPClassifier(16, MLPConfig{Seed: 1})
	assert.Error(t, bad.Fit(embeddings, labels))
}

func TestMLPFitLabelMismatch(t *testing.T) {
	embeddings, _ := separableEmbeddings(10, 8)
	clf := NewMLPClassifier(8, MLPConfig{Seed: 1})
	assert.Error(t, clf.Fit(embeddings, []int{1, 0}))
	assert.Error(t, clf.Fit(nil, nil))
}

func TestMLPSeedReproducible(t *testing.T) {
	embeddings, labels := separableEmbeddings(20, 8)

	a := NewMLPClassifier(8, MLPConfig{Seed: 7, MaxIter: 50})
	require.NoError(t, a.Fit(embeddings, labels))
	b := NewMLPClassifier(8, MLPConfig{Seed: 7, MaxIter: 50})
	require.NoError(t, b.Fit(embeddings, labels))

	assert.Equal(t, a.Snapshot("x"), b.Snapshot("x"))
}

func TestMLPSnapshotRoundTrip(t *testing.T) {
	embeddings, labels := separableEmbeddings(30, 8)
	clf := NewMLPClassifier(8, MLPConfig{Seed: 5})
	require.NoError(t, clf.Fit(embeddings, labels))

	clone := ClassifierFromSnapshot(clf.Snapshot("fp"))
	want, err := clf.PredictBatch(embeddings)
	require.NoError(t, err)
	got, err := clone.PredictBatch(embeddings)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, clf.Converged, clone.Converged)
}
