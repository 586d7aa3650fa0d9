package nn

import (
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer draws layer weights from a seeded source so runs are
// reproducible end to end.
type Initializer struct {
	normal distuv.Normal
}

// NewInitializer seeds a shared source for all layers of one model.
func NewInitializer(seed int64) *Initializer {
	return &Initializer{
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: exprand.NewSource(uint64(seed))},
	}
}

// Xavier returns out*in weights scaled by sqrt(2/(in+out)).
func (in *Initializer) Xavier(rows, cols int) []float64 {
	scale := math.Sqrt(2.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = in.normal.Rand() * scale
	}
	return data
}
