package training

import (
	"math"

	"github.com/tapon22bce/sarcnet/sarcnet/model"
)

const improvementEps = 1e-6

// plateauScheduler reduces the learning rate by a multiplicative factor when
// validation loss stops improving for patience epochs.
type plateauScheduler struct {
	factor   float64
	minLR    float64
	patience int
	best     float64
	wait     int
}

func newPlateauScheduler(factor, minLR float64, patience int) *plateauScheduler {
	return &plateauScheduler{factor: factor, minLR: minLR, patience: patience, best: math.Inf(1)}
}

// next returns the learning rate to use after observing one epoch's
// validation loss.
func (p *plateauScheduler) next(valLoss, lr float64) float64 {
	if valLoss < p.best-improvementEps {
		p.best = valLoss
		p.wait = 0
		return lr
	}
	p.wait++
	if p.wait > p.patience {
		p.wait = 0
		lr *= p.factor
		if lr < p.minLR {
			lr = p.minLR
		}
	}
	return lr
}

// earlyStopper halts training after patience epochs without validation
// improvement and keeps a snapshot of the best-observed weights so the run can
// roll back instead of keeping the final epoch's parameters.
type earlyStopper struct {
	patience int
	best     float64
	wait     int
	bestSnap *model.WeightsSnapshot
	improved bool
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, best: math.Inf(1)}
}

// observe records one epoch's validation loss; snapshot is only taken on
// improvement. Returns true when training should stop.
func (s *earlyStopper) observe(valLoss float64, snapshot func() model.WeightsSnapshot) bool {
	if valLoss < s.best-improvementEps {
		s.best = valLoss
		s.wait = 0
		s.improved = true
		snap := snapshot()
		s.bestSnap = &snap
		return false
	}
	s.wait++
	return s.wait > s.patience
}
