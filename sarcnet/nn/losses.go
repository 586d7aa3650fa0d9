package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// SigmoidBCE fuses the sigmoid with binary cross-entropy. logits is (1 x
// batch); labels hold 0/1 per column. Returns the mean loss and the gradient
// wrt the logits, already averaged over the batch.
func SigmoidBCE(logits *mat.Dense, labels []float64) (float64, *mat.Dense) {
	_, batch := logits.Dims()
	dLogits := mat.NewDense(1, batch, nil)
	var loss float64
	for j := 0; j < batch; j++ {
		p := Sigmoid(logits.At(0, j))
		y := labels[j]
		// clamp to keep log finite
		pc := math.Min(math.Max(p, 1e-7), 1-1e-7)
		loss += -(y*math.Log(pc) + (1-y)*math.Log(1-pc))
		dLogits.Set(0, j, (p-y)/float64(batch))
	}
	return loss / float64(batch), dLogits
}
