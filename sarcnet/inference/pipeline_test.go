package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

func testSpec() config.PipelineSpec {
	return config.PipelineSpec{
		MaxSeqLen: 8,
		BranchA:   config.BranchSpec{Provider: "whitespace", Model: "hash-a", Width: 16},
		BranchB:   config.BranchSpec{Provider: "whitespace", Model: "hash-b", Width: 16},
	}
}

func testBranches(spec config.PipelineSpec) (*encoder.Branch, *encoder.Branch) {
	tok := tokenize.NewWhitespace(spec.MaxSeqLen)
	a := encoder.NewBranch("A", tok, encoder.NewHashEncoder(spec.BranchA.Width), encoder.PooledRepresentation{})
	b := encoder.NewBranch("B", tok, encoder.NewHashEncoder(spec.BranchB.Width), encoder.FirstTokenRepresentation{})
	return a, b
}

// trainedParts runs a short end-to-end training pass so the pipeline under
// test uses real frozen weights and a genuinely fitted classifier.
func trainedParts(t *testing.T, spec config.PipelineSpec) (*model.Extractor, *model.MLPClassifier) {
	t.Helper()
	a, b := testBranches(spec)
	ft := model.NewFineTuner(spec, a, b, 1)

	corpus := &dataset.Corpus{
		Texts: []string{
			"oh great, another meeting",
			"wow what a surprise",
			"lunch is in the fridge",
			"the door is unlocked",
		},
		Labels: []int{1, 1, 0, 0},
	}
	tok := tokenize.NewWhitespace(spec.MaxSeqLen)
	batch, err := dataset.Tokenize(corpus, tok, tok)
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := ft.TrainBatch(ctx, batch, 1e-2)
		require.NoError(t, err)
	}
	ft.Finish()

	extractor, err := model.NewExtractor(ft, 0)
	require.NoError(t, err)
	embeddings, err := extractor.Embed(ctx, batch)
	require.NoError(t, err)
	clf := model.NewMLPClassifier(extractor.Width(), model.MLPConfig{Seed: 2})
	require.NoError(t, clf.Fit(embeddings, batch.Labels))
	return extractor, clf
}

func TestPredict(t *testing.T) {
	spec := testSpec()
	extractor, clf := trainedParts(t, spec)
	p := New(extractor, clf)

	label, category, err := p.Predict(context.Background(), "oh great, another meeting")
	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, label)
	if label == 1 {
		assert.Equal(t, CategorySarcastic, category)
	} else {
		assert.Equal(t, CategoryNotSarcastic, category)
	}

	// deterministic across calls
	again, _, err := p.Predict(context.Background(), "oh great, another meeting")
	require.NoError(t, err)
	assert.Equal(t, label, again)
}

func TestPredictEmptyText(t *testing.T) {
	spec := testSpec()
	extractor, clf := trainedParts(t, spec)
	p := New(extractor, clf)

	_, _, err := p.Predict(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestPredictOversizedInputTruncated(t *testing.T) {
	spec := testSpec()
	extractor, clf := trainedParts(t, spec)
	p := New(extractor, clf)

	long := "this comment keeps going on and on well past the sequence budget of the tokenizers without ever stopping"
	label, _, err := p.Predict(context.Background(), long)
	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, label)
}

func TestFromArtifactsRoundTrip(t *testing.T) {
	spec := testSpec()
	extractor, clf := trainedParts(t, spec)

	// through the persistence boundary and back
	weightsRaw, err := model.EncodeWeights(snapshotOf(t, spec))
	require.NoError(t, err)
	weights, err := model.DecodeWeights(weightsRaw)
	require.NoError(t, err)

	clfRaw, err := model.EncodeClassifier(clf.Snapshot(spec.Fingerprint()))
	require.NoError(t, err)
	clfSnap, err := model.DecodeClassifier(clfRaw)
	require.NoError(t, err)

	a, b := testBranches(spec)
	p, err := FromArtifacts(spec, a, b, weights, clfSnap, 0)
	require.NoError(t, err)

	label, _, err := p.Predict(context.Background(), "oh great, another meeting")
	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, label)

	direct := New(extractor, clf)
	dLabel, _, err := direct.Predict(context.Background(), "see you tomorrow then")
	require.NoError(t, err)
	assert.Contains(t, []int{0, 1}, dLabel)
}

func TestFromArtifactsRejectsStaleWeights(t *testing.T) {
	spec := testSpec()
	_, clf := trainedParts(t, spec)
	a, b := testBranches(spec)
	weights := snapshotOf(t, spec)
	clfSnap := clf.Snapshot(spec.Fingerprint())

	other := spec
	other.BranchB.Model = "hash-c"
	_, err := FromArtifacts(other, a, b, weights, clfSnap, 0)
	assert.ErrorIs(t, err, model.ErrStaleWeights)

	// classifier fingerprint is checked independently of the weights
	badClf := clfSnap
	badClf.Fingerprint = "deadbeef"
	_, err = FromArtifacts(spec, a, b, weights, badClf, 0)
	assert.ErrorIs(t, err, model.ErrStaleWeights)
}

// snapshotOf produces a valid stage-1 weights snapshot for the given spec.
func snapshotOf(t *testing.T, spec config.PipelineSpec) model.WeightsSnapshot {
	t.Helper()
	a, b := testBranches(spec)
	ft := model.NewFineTuner(spec, a, b, 1)
	ft.Finish()
	return ft.Snapshot()
}
