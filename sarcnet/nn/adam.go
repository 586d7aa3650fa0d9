package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam defaults shared by every layer in the pipeline.
const (
	Beta1       = 0.9
	Beta2       = 0.999
	Epsilon     = 1e-8
	WeightDecay = 0.0
)

// AdamUpdateInPlace applies one AdamW step with bias correction:
// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			update := mhat/(math.Sqrt(vhat)+eps) + weightDecay*p.At(i, j)
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*update)
		}
	}
}

func adamUpdateVec(p, g, m, v []float64, t int, lr float64) {
	b1t := math.Pow(Beta1, float64(t))
	b2t := math.Pow(Beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := range p {
		m[i] = Beta1*m[i] + (1.0-Beta1)*g[i]
		v[i] = Beta2*v[i] + (1.0-Beta2)*g[i]*g[i]
		mhat := m[i] * c1
		vhat := v[i] * c2
		p[i] -= lr * mhat / (math.Sqrt(vhat) + Epsilon)
	}
}
