package model

import (
	"context"
	"errors"
	"fmt"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"gonum.org/v1/gonum/mat"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/nn"
)

const (
	headHidden1 = 128
	headHidden2 = 64
	dropoutRate = 0.2
)

// ErrStageIncomplete is returned when stage-2 machinery is requested before
// fine-tuning reached its terminal state.
var ErrStageIncomplete = errors.New("fine-tuning has not completed")

// head is the stage-1 classification head: two regularized hidden layers over
// the joint embedding ending in one logit.
type head struct {
	fc1   *nn.Dense
	drop1 *nn.Dropout
	fc2   *nn.Dense
	drop2 *nn.Dropout
	out   *nn.Dense
}

func newHead(jointWidth int, init *nn.Initializer, seed int64) *head {
	return &head{
		fc1:   nn.NewDense(jointWidth, headHidden1, nn.ActReLU, init),
		drop1: nn.NewDropout(dropoutRate, seed),
		fc2:   nn.NewDense(headHidden1, headHidden2, nn.ActReLU, init),
		drop2: nn.NewDropout(dropoutRate, seed+1),
		out:   nn.NewDense(headHidden2, 1, nn.ActIdentity, init),
	}
}

func (h *head) forward(joint *mat.Dense, train bool) *mat.Dense {
	y := h.fc1.Forward(joint)
	y = h.drop1.Forward(y, train)
	y = h.fc2.Forward(y)
	y = h.drop2.Forward(y, train)
	return h.out.Forward(y)
}

func (h *head) backward(dLogits *mat.Dense) *mat.Dense {
	d := h.out.Backward(dLogits)
	d = h.drop2.Backward(d)
	d = h.fc2.Backward(d)
	d = h.drop1.Backward(d)
	return h.fc1.Backward(d)
}

func (h *head) step(lr float64) {
	h.fc1.Step(lr)
	h.fc2.Step(lr)
	h.out.Step(lr)
}

// FineTuner owns everything stage 1 trains: one projection layer per encoder
// branch (the trainable part of each adapter, since the base encoders are
// inference-only) plus the classification head. Once Finish is called the
// weights are frozen and the tuner only hands itself over to an Extractor.
type FineTuner struct {
	spec  config.PipelineSpec
	a, b  *encoder.Branch
	projA *nn.Dense
	projB *nn.Dense
	head  *head

	assertions *assert.AssertHandler
	done       bool
}

// NewFineTuner builds the stage-1 model with seeded initialization.
func NewFineTuner(spec config.PipelineSpec, a, b *encoder.Branch, seed int64) *FineTuner {
	init := nn.NewInitializer(seed)
	return &FineTuner{
		spec:       spec,
		a:          a,
		b:          b,
		projA:      nn.NewDense(spec.BranchA.Width, spec.BranchA.Width, nn.ActReLU, init),
		projB:      nn.NewDense(spec.BranchB.Width, spec.BranchB.Width, nn.ActReLU, init),
		head:       newHead(spec.JointWidth(), init, seed+2),
		assertions: assert.NewAssertHandler(),
	}
}

// Spec returns the pipeline contract this tuner was built against.
func (ft *FineTuner) Spec() config.PipelineSpec { return ft.spec }

// Branches returns the frozen base encoder branches.
func (ft *FineTuner) Branches() (a, b *encoder.Branch) { return ft.a, ft.b }

// fuseBatch encodes both branches, applies the trainable projections and
// concatenates per sample, returning the joint matrix (jointWidth x batch).
func (ft *FineTuner) fuseBatch(ctx context.Context, batch *dataset.Tokenized) (*mat.Dense, error) {
	vecsA, err := ft.a.EncodeTokens(ctx, batch.IDsA, batch.MaskA)
	if err != nil {
		return nil, err
	}
	vecsB, err := ft.b.EncodeTokens(ctx, batch.IDsB, batch.MaskB)
	if err != nil {
		return nil, err
	}
	hA := ft.projA.Forward(columns(vecsA))
	hB := ft.projB.Forward(columns(vecsB))

	n := batch.Len()
	wA, wB := ft.spec.BranchA.Width, ft.spec.BranchB.Width
	rA, cA := hA.Dims()
	rB, cB := hB.Dims()
	ft.assertions.Assert(ctx, rA == wA && cA == n,
		"projected branch A dims must match the pipeline contract", "rows", rA, "cols", cA, "width", wA, "batch", n)
	ft.assertions.Assert(ctx, rB == wB && cB == n,
		"projected branch B dims must match the pipeline contract", "rows", rB, "cols", cB, "width", wB, "batch", n)

	joint := mat.NewDense(ft.spec.JointWidth(), n, nil)
	for j := 0; j < n; j++ {
		fused, err := encoder.Fuse(colToVec(hA, j, wA), colToVec(hB, j, wB), wA, wB)
		if err != nil {
			return nil, err
		}
		for i, v := range fused {
			joint.Set(i, j, float64(v))
		}
	}
	return joint, nil
}

// TrainBatch runs one forward/backward pass over a mini-batch and applies the
// optimizer at the given learning rate. Returns the batch loss.
func (ft *FineTuner) TrainBatch(ctx context.Context, batch *dataset.Tokenized, lr float64) (float64, error) {
	if ft.done {
		return 0, errors.New("fine-tuner is frozen")
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	joint, err := ft.fuseBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	logits := ft.head.forward(joint, true)
	loss, dLogits := nn.SigmoidBCE(logits, floatLabels(batch.Labels))

	dJoint := ft.head.backward(dLogits)
	wA := ft.spec.BranchA.Width
	rows, cols := dJoint.Dims()
	if rows != ft.spec.JointWidth() {
		return 0, fmt.Errorf("%w: joint gradient rows %d, want %d",
			encoder.ErrShapeMismatch, rows, ft.spec.JointWidth())
	}
	ft.assertions.Assert(ctx, cols == batch.Len(),
		"gradient columns must match the batch", "cols", cols, "batch", batch.Len())
	dA := dJoint.Slice(0, wA, 0, cols).(*mat.Dense)
	dB := dJoint.Slice(wA, rows, 0, cols).(*mat.Dense)
	ft.projA.Backward(dA)
	ft.projB.Backward(dB)

	ft.head.step(lr)
	ft.projA.Step(lr)
	ft.projB.Step(lr)
	return loss, nil
}

// Loss computes the batch loss without dropout and without updating weights.
// Used for the validation slice.
func (ft *FineTuner) Loss(ctx context.Context, batch *dataset.Tokenized) (float64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	joint, err := ft.fuseBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	logits := ft.head.forward(joint, false)
	loss, _ := nn.SigmoidBCE(logits, floatLabels(batch.Labels))
	return loss, nil
}

// Finish marks stage 1 terminal; the weights are frozen from here on.
func (ft *FineTuner) Finish() { ft.done = true }

// Done reports whether stage 1 reached its terminal state.
func (ft *FineTuner) Done() bool { return ft.done }

// Snapshot copies every trainable parameter, tagged with the pipeline
// fingerprint so a later load can detect mismatched tokenizer/encoder setups.
func (ft *FineTuner) Snapshot() WeightsSnapshot {
	return WeightsSnapshot{
		Fingerprint: ft.spec.Fingerprint(),
		ProjA:       ft.projA.Snapshot(),
		ProjB:       ft.projB.Snapshot(),
		Head1:       ft.head.fc1.Snapshot(),
		Head2:       ft.head.fc2.Snapshot(),
		HeadOut:     ft.head.out.Snapshot(),
	}
}

// Restore overwrites all trainable parameters from a snapshot. Used by early
// stopping to roll back to the best-observed epoch.
func (ft *FineTuner) Restore(s WeightsSnapshot) error {
	if err := ft.projA.Restore(s.ProjA); err != nil {
		return fmt.Errorf("restore projA: %w", err)
	}
	if err := ft.projB.Restore(s.ProjB); err != nil {
		return fmt.Errorf("restore projB: %w", err)
	}
	if err := ft.head.fc1.Restore(s.Head1); err != nil {
		return fmt.Errorf("restore head fc1: %w", err)
	}
	if err := ft.head.fc2.Restore(s.Head2); err != nil {
		return fmt.Errorf("restore head fc2: %w", err)
	}
	if err := ft.head.out.Restore(s.HeadOut); err != nil {
		return fmt.Errorf("restore head out: %w", err)
	}
	return nil
}

// columns converts sample-major vectors into a (width x batch) matrix.
func columns(vecs [][]float32) *mat.Dense {
	if len(vecs) == 0 {
		return mat.NewDense(1, 1, nil)
	}
	w := len(vecs[0])
	m := mat.NewDense(w, len(vecs), nil)
	for j, vec := range vecs {
		for i, v := range vec {
			m.Set(i, j, float64(v))
		}
	}
	return m
}

func colToVec(m *mat.Dense, j, width int) []float32 {
	vec := make([]float32, width)
	for i := 0; i < width; i++ {
		vec[i] = float32(m.At(i, j))
	}
	return vec
}

func floatLabels(labels []int) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = float64(l)
	}
	return out
}
