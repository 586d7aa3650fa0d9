package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Activation selects the elementwise nonlinearity applied after the affine map.
type Activation int

const (
	ActIdentity Activation = iota
	ActReLU
)

// Dense is a fully connected layer over column-major batches: inputs are
// (in x batch) matrices, outputs (out x batch). It owns its Adam state and
// caches the forward pass for backprop.
type Dense struct {
	W   *mat.Dense // (out x in)
	B   []float64  // (out)
	Act Activation

	// Adam moments
	mW, vW *mat.Dense
	mB, vB []float64
	step   int

	// cached forward state
	x      *mat.Dense
	preact *mat.Dense
	gradW  *mat.Dense
	gradB  []float64
}

// NewDense builds a layer with Xavier-initialized weights drawn from src.
func NewDense(in, out int, act Activation, init *Initializer) *Dense {
	return &Dense{
		W:   mat.NewDense(out, in, init.Xavier(out, in)),
		B:   make([]float64, out),
		Act: act,
		mW:  mat.NewDense(out, in, nil),
		vW:  mat.NewDense(out, in, nil),
		mB:  make([]float64, out),
		vB:  make([]float64, out),
	}
}

// In and Out report the layer dimensions.
func (d *Dense) In() int  { _, c := d.W.Dims(); return c }
func (d *Dense) Out() int { r, _ := d.W.Dims(); return r }

// Forward computes act(W*x + b) and caches what Backward needs.
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	out, _ := d.W.Dims()
	_, batch := x.Dims()
	z := mat.NewDense(out, batch, nil)
	z.Mul(d.W, x)
	for i := 0; i < out; i++ {
		for j := 0; j < batch; j++ {
			z.Set(i, j, z.At(i, j)+d.B[i])
		}
	}
	d.x = x
	d.preact = z
	y := mat.NewDense(out, batch, nil)
	switch d.Act {
	case ActReLU:
		for i := 0; i < out; i++ {
			for j := 0; j < batch; j++ {
				v := z.At(i, j)
				if v < 0 {
					v = 0
				}
				y.Set(i, j, v)
			}
		}
	default:
		y.Copy(z)
	}
	return y
}

// Backward takes the gradient wrt this layer's output and returns the gradient
// wrt its input. Parameter gradients are held until Step.
func (d *Dense) Backward(dY *mat.Dense) *mat.Dense {
	out, in := d.W.Dims()
	_, batch := dY.Dims()

	dZ := mat.NewDense(out, batch, nil)
	switch d.Act {
	case ActReLU:
		for i := 0; i < out; i++ {
			for j := 0; j < batch; j++ {
				if d.preact.At(i, j) > 0 {
					dZ.Set(i, j, dY.At(i, j))
				}
			}
		}
	default:
		dZ.Copy(dY)
	}

	d.gradW = mat.NewDense(out, in, nil)
	d.gradW.Mul(dZ, d.x.T())
	d.gradB = make([]float64, out)
	for i := 0; i < out; i++ {
		for j := 0; j < batch; j++ {
			d.gradB[i] += dZ.At(i, j)
		}
	}

	dX := mat.NewDense(in, batch, nil)
	dX.Mul(d.W.T(), dZ)
	return dX
}

// Step applies one AdamW update with the given learning rate.
func (d *Dense) Step(lr float64) {
	if d.gradW == nil {
		return
	}
	d.step++
	AdamUpdateInPlace(d.W, d.gradW, d.mW, d.vW, d.step, lr, Beta1, Beta2, Epsilon, WeightDecay)
	adamUpdateVec(d.B, d.gradB, d.mB, d.vB, d.step, lr)
	d.gradW = nil
	d.gradB = nil
}

// LayerSnapshot is a gob-friendly copy of a layer's parameters.
type LayerSnapshot struct {
	Rows, Cols int
	W          []float64
	B          []float64
}

// Snapshot copies the current parameters.
func (d *Dense) Snapshot() LayerSnapshot {
	r, c := d.W.Dims()
	w := make([]float64, r*c)
	copy(w, d.W.RawMatrix().Data)
	b := make([]float64, len(d.B))
	copy(b, d.B)
	return LayerSnapshot{Rows: r, Cols: c, W: w, B: b}
}

// Restore overwrites the parameters from a snapshot.
func (d *Dense) Restore(s LayerSnapshot) error {
	r, c := d.W.Dims()
	if s.Rows != r || s.Cols != c || len(s.B) != len(d.B) {
		return fmt.Errorf("snapshot shape (%d x %d, b=%d) does not match layer (%d x %d, b=%d)",
			s.Rows, s.Cols, len(s.B), r, c, len(d.B))
	}
	copy(d.W.RawMatrix().Data, s.W)
	copy(d.B, s.B)
	return nil
}

// DenseFromSnapshot rebuilds a layer from persisted parameters.
func DenseFromSnapshot(s LayerSnapshot, act Activation) *Dense {
	d := &Dense{
		W:   mat.NewDense(s.Rows, s.Cols, nil),
		B:   make([]float64, len(s.B)),
		Act: act,
		mW:  mat.NewDense(s.Rows, s.Cols, nil),
		vW:  mat.NewDense(s.Rows, s.Cols, nil),
		mB:  make([]float64, len(s.B)),
		vB:  make([]float64, len(s.B)),
	}
	copy(d.W.RawMatrix().Data, s.W)
	copy(d.B, s.B)
	return d
}
