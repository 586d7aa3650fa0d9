package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes a fraction of activations while training and rescales the
// rest (inverted dropout), so inference needs no correction. Disabled entirely
// when train is false.
type Dropout struct {
	Rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func NewDropout(rate float64, seed int64) *Dropout {
	return &Dropout{Rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (d *Dropout) Forward(x *mat.Dense, train bool) *mat.Dense {
	if !train || d.Rate <= 0 {
		d.mask = nil
		return x
	}
	r, c := x.Dims()
	keep := 1.0 - d.Rate
	d.mask = mat.NewDense(r, c, nil)
	y := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d.rng.Float64() < keep {
				scale := 1.0 / keep
				d.mask.Set(i, j, scale)
				y.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	return y
}

func (d *Dropout) Backward(dY *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return dY
	}
	r, c := dY.Dims()
	dX := mat.NewDense(r, c, nil)
	dX.MulElem(dY, d.mask)
	return dX
}
