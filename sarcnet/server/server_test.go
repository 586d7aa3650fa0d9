package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/inference"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	spec := config.PipelineSpec{
		MaxSeqLen: 8,
		BranchA:   config.BranchSpec{Provider: "whitespace", Model: "hash-a", Width: 16},
		BranchB:   config.BranchSpec{Provider: "whitespace", Model: "hash-b", Width: 16},
	}
	tok := tokenize.NewWhitespace(spec.MaxSeqLen)
	a := encoder.NewBranch("A", tok, encoder.NewHashEncoder(spec.BranchA.Width), encoder.PooledRepresentation{})
	b := encoder.NewBranch("B", tok, encoder.NewHashEncoder(spec.BranchB.Width), encoder.FirstTokenRepresentation{})
	ft := model.NewFineTuner(spec, a, b, 1)

	corpus := &dataset.Corpus{
		Texts:  []string{"oh sure that will work", "the meeting is at three"},
		Labels: []int{1, 0},
	}
	batch, err := dataset.Tokenize(corpus, tok, tok)
	require.NoError(t, err)
	_, err = ft.TrainBatch(context.Background(), batch, 1e-2)
	require.NoError(t, err)
	ft.Finish()

	extractor, err := model.NewExtractor(ft, 0)
	require.NoError(t, err)
	embeddings, err := extractor.Embed(context.Background(), batch)
	require.NoError(t, err)
	clf := model.NewMLPClassifier(extractor.Width(), model.MLPConfig{Seed: 1, MaxIter: 50})
	require.NoError(t, clf.Fit(embeddings, batch.Labels))

	return New(zerolog.Nop(), inference.New(extractor, clf))
}

func TestPredictEndpoint(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/predict",
		strings.NewReader(`{"text":"oh great, another meeting"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Label    int    `json:"label"`
		Category string `json:"category"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, []int{0, 1}, resp.Label)
	assert.Contains(t, []string{inference.CategorySarcastic, inference.CategoryNotSarcastic}, resp.Category)
}

func TestPredictRejectsGet(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictRejectsMissingText(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
