package model

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/nn"
)

// DefaultExtractBatchSize bounds peak memory during embedding extraction.
const DefaultExtractBatchSize = 32

// Extractor replays the stage-1 forward pass up to the joint embedding with
// frozen weights. It can only be built from a completed FineTuner (or its
// persisted snapshot), which is what makes starting stage 2 early structurally
// impossible. Frozen weights are read-only, so extraction batches run
// concurrently.
type Extractor struct {
	spec      config.PipelineSpec
	a, b      *encoder.Branch
	projA     frozenDense
	projB     frozenDense
	batchSize int
}

// NewExtractor hands the fine-tuner's weights to a frozen extractor. Fails if
// stage 1 has not reached its terminal state.
func NewExtractor(ft *FineTuner, batchSize int) (*Extractor, error) {
	if !ft.Done() {
		return nil, ErrStageIncomplete
	}
	snap := ft.Snapshot()
	a, b := ft.Branches()
	return extractorFromParts(ft.Spec(), a, b, snap, batchSize)
}

// ExtractorFromSnapshot rebuilds a frozen extractor from persisted stage-1
// weights. The snapshot's fingerprint must match the live pipeline spec;
// a mismatch means the tokenizers, encoders or sequence length differ from
// the training run and would silently skew every prediction.
func ExtractorFromSnapshot(spec config.PipelineSpec, a, b *encoder.Branch, snap WeightsSnapshot, batchSize int) (*Extractor, error) {
	if snap.Fingerprint != spec.Fingerprint() {
		return nil, fmt.Errorf("%w: artifact fingerprint %.12s vs pipeline %.12s",
			ErrStaleWeights, snap.Fingerprint, spec.Fingerprint())
	}
	return extractorFromParts(spec, a, b, snap, batchSize)
}

func extractorFromParts(spec config.PipelineSpec, a, b *encoder.Branch, snap WeightsSnapshot, batchSize int) (*Extractor, error) {
	if batchSize <= 0 {
		batchSize = DefaultExtractBatchSize
	}
	pA, err := newFrozenDense(snap.ProjA)
	if err != nil {
		return nil, fmt.Errorf("branch A projection: %w", err)
	}
	pB, err := newFrozenDense(snap.ProjB)
	if err != nil {
		return nil, fmt.Errorf("branch B projection: %w", err)
	}
	return &Extractor{
		spec:      spec,
		a:         a,
		b:         b,
		projA:     pA,
		projB:     pB,
		batchSize: batchSize,
	}, nil
}

// Spec returns the pipeline contract the frozen weights were trained under.
func (e *Extractor) Spec() config.PipelineSpec { return e.spec }

// Width is the joint embedding width.
func (e *Extractor) Width() int { return e.spec.JointWidth() }

// Embed extracts joint embeddings for a whole partition, in fixed-size batches
// fanned out over a worker pool. Output order matches input order.
func (e *Extractor) Embed(ctx context.Context, t *dataset.Tokenized) ([][]float32, error) {
	n := t.Len()
	out := make([][]float32, n)
	p := pool.New().WithErrors().WithContext(ctx)
	for start := 0; start < n; start += e.batchSize {
		end := start + e.batchSize
		if end > n {
			end = n
		}
		from, to := start, end
		p.Go(func(ctx context.Context) error {
			vecs, err := e.embedBatch(ctx, t.Slice(from, to))
			if err != nil {
				return err
			}
			copy(out[from:to], vecs)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedText runs a single raw text through tokenize, encode, project and fuse.
func (e *Extractor) EmbedText(ctx context.Context, text string) ([]float32, error) {
	idsA, maskA, err := e.a.Tok.Tokenize([]string{text})
	if err != nil {
		return nil, fmt.Errorf("branch A tokenize: %w", err)
	}
	idsB, maskB, err := e.b.Tok.Tokenize([]string{text})
	if err != nil {
		return nil, fmt.Errorf("branch B tokenize: %w", err)
	}
	vecs, err := e.embedBatch(ctx, &dataset.Tokenized{
		Texts: []string{text},
		IDsA:  idsA, MaskA: maskA,
		IDsB: idsB, MaskB: maskB,
		Labels: []int{0},
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Extractor) embedBatch(ctx context.Context, batch *dataset.Tokenized) ([][]float32, error) {
	vecsA, err := e.a.EncodeTokens(ctx, batch.IDsA, batch.MaskA)
	if err != nil {
		return nil, err
	}
	vecsB, err := e.b.EncodeTokens(ctx, batch.IDsB, batch.MaskB)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, batch.Len())
	for i := range out {
		hA := e.projA.apply(vecsA[i])
		hB := e.projB.apply(vecsB[i])
		joint, err := encoder.Fuse(hA, hB, e.spec.BranchA.Width, e.spec.BranchB.Width)
		if err != nil {
			return nil, err
		}
		out[i] = joint
	}
	return out, nil
}

// frozenDense is a read-only ReLU dense layer safe for concurrent use.
type frozenDense struct {
	rows, cols int
	w          []float64
	b          []float64
}

func newFrozenDense(s nn.LayerSnapshot) (frozenDense, error) {
	if s.Rows <= 0 || s.Cols <= 0 || len(s.W) != s.Rows*s.Cols || len(s.B) != s.Rows {
		return frozenDense{}, fmt.Errorf("malformed layer snapshot (%d x %d, w=%d, b=%d)",
			s.Rows, s.Cols, len(s.W), len(s.B))
	}
	return frozenDense{rows: s.Rows, cols: s.Cols, w: s.W, b: s.B}, nil
}

func (f frozenDense) apply(x []float32) []float32 {
	out := make([]float32, f.rows)
	for i := 0; i < f.rows; i++ {
		sum := f.b[i]
		row := f.w[i*f.cols : (i+1)*f.cols]
		for j, wij := range row {
			sum += wij * float64(x[j])
		}
		if sum < 0 {
			sum = 0
		}
		out[i] = float32(sum)
	}
	return out
}
