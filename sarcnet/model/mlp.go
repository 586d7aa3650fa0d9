package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/tapon22bce/sarcnet/sarcnet/nn"
)

// MLPConfig tunes the secondary classifier. Zero values fall back to the
// defaults used by the training protocol.
type MLPConfig struct {
	Hidden1      int
	Hidden2      int
	MaxIter      int
	Tol          float64
	LearningRate float64
	Seed         int64
}

func (c MLPConfig) withDefaults() MLPConfig {
	if c.Hidden1 == 0 {
		c.Hidden1 = 128
	}
	if c.Hidden2 == 0 {
		c.Hidden2 = 64
	}
	if c.MaxIter == 0 {
		c.MaxIter = 300
	}
	if c.Tol == 0 {
		c.Tol = 1e-4
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	return c
}

// MLPClassifier is the secondary classifier: a small MLP fit on frozen joint
// embeddings, decoupled from the fine-tuning head so it can be retrained
// without touching the encoders. Full-batch gradient descent up to MaxIter
// iterations; hitting the cap is a soft limit, reported via Converged, not an
// error.
type MLPClassifier struct {
	cfg       MLPConfig
	h1        *nn.Dense
	h2        *nn.Dense
	out       *nn.Dense
	inWidth   int
	fitted    bool
	Converged bool
	Iters     int
}

var ErrNotFitted = errors.New("classifier has not been fit")

// NewMLPClassifier builds an unfit classifier for embeddings of the given width.
func NewMLPClassifier(inWidth int, cfg MLPConfig) *MLPClassifier {
	cfg = cfg.withDefaults()
	init := nn.NewInitializer(cfg.Seed)
	return &MLPClassifier{
		cfg:     cfg,
		h1:      nn.NewDense(inWidth, cfg.Hidden1, nn.ActReLU, init),
		h2:      nn.NewDense(cfg.Hidden1, cfg.Hidden2, nn.ActReLU, init),
		out:     nn.NewDense(cfg.Hidden2, 1, nn.ActIdentity, init),
		inWidth: inWidth,
	}
}

// Fit trains on the embedding matrix until the loss delta drops below Tol or
// MaxIter is reached.
func (m *MLPClassifier) Fit(embeddings [][]float32, labels []int) error {
	if len(embeddings) == 0 {
		return errors.New("no embeddings to fit")
	}
	if len(embeddings) != len(labels) {
		return fmt.Errorf("%d embeddings vs %d labels", len(embeddings), len(labels))
	}
	for i, e := range embeddings {
		if len(e) != m.inWidth {
			return fmt.Errorf("embedding %d has width %d, want %d", i, len(e), m.inWidth)
		}
	}

	x := columns(embeddings)
	y := floatLabels(labels)
	prev := math.Inf(1)
	m.Converged = false
	for iter := 0; iter < m.cfg.MaxIter; iter++ {
		logits := m.out.Forward(m.h2.Forward(m.h1.Forward(x)))
		loss, dLogits := nn.SigmoidBCE(logits, y)

		m.h1.Backward(m.h2.Backward(m.out.Backward(dLogits)))
		m.out.Step(m.cfg.LearningRate)
		m.h2.Step(m.cfg.LearningRate)
		m.h1.Step(m.cfg.LearningRate)

		m.Iters = iter + 1
		if math.Abs(prev-loss) < m.cfg.Tol {
			m.Converged = true
			break
		}
		prev = loss
	}
	m.fitted = true
	return nil
}

// Predict maps one joint embedding to a binary label.
func (m *MLPClassifier) Predict(embedding []float32) (int, error) {
	if !m.fitted {
		return 0, ErrNotFitted
	}
	if len(embedding) != m.inWidth {
		return 0, fmt.Errorf("embedding width %d, want %d", len(embedding), m.inWidth)
	}
	x := mat.NewDense(m.inWidth, 1, nil)
	for i, v := range embedding {
		x.Set(i, 0, float64(v))
	}
	logits := m.out.Forward(m.h2.Forward(m.h1.Forward(x)))
	if nn.Sigmoid(logits.At(0, 0)) >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// PredictBatch predicts one label per embedding, preserving order.
func (m *MLPClassifier) PredictBatch(embeddings [][]float32) ([]int, error) {
	out := make([]int, len(embeddings))
	for i, e := range embeddings {
		label, err := m.Predict(e)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

// Snapshot copies the classifier parameters for persistence.
func (m *MLPClassifier) Snapshot(fingerprint string) ClassifierSnapshot {
	return ClassifierSnapshot{
		Fingerprint: fingerprint,
		InWidth:     m.inWidth,
		H1:          m.h1.Snapshot(),
		H2:          m.h2.Snapshot(),
		Out:         m.out.Snapshot(),
		Converged:   m.Converged,
	}
}

// ClassifierFromSnapshot rebuilds a fitted classifier from persisted weights.
func ClassifierFromSnapshot(s ClassifierSnapshot) *MLPClassifier {
	return &MLPClassifier{
		cfg:       MLPConfig{}.withDefaults(),
		h1:        nn.DenseFromSnapshot(s.H1, nn.ActReLU),
		h2:        nn.DenseFromSnapshot(s.H2, nn.ActReLU),
		out:       nn.DenseFromSnapshot(s.Out, nn.ActIdentity),
		inWidth:   s.InWidth,
		fitted:    true,
		Converged: s.Converged,
	}
}
