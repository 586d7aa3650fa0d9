package encoder

import "fmt"

// Representation reduces raw encoder outputs to one vector per sample. The
// two encoder families canonically summarize a sequence differently, so this
// is a closed set: pooled output for one, first-token hidden state for the
// other.
type Representation interface {
	Name() string
	Extract(out *Outputs, i int) ([]float32, error)
}

// PooledRepresentation reads the encoder's pooled output.
type PooledRepresentation struct{}

func (PooledRepresentation) Name() string { return "pooled" }

func (PooledRepresentation) Extract(out *Outputs, i int) ([]float32, error) {
	if out == nil || i >= len(out.Pooled) {
		return nil, fmt.Errorf("no pooled output for sample %d", i)
	}
	return out.Pooled[i], nil
}

// FirstTokenRepresentation reads the hidden state of the first token.
type FirstTokenRepresentation struct{}

func (FirstTokenRepresentation) Name() string { return "first-token" }

func (FirstTokenRepresentation) Extract(out *Outputs, i int) ([]float32, error) {
	if out == nil || i >= len(out.Hidden) || len(out.Hidden[i]) == 0 {
		return nil, fmt.Errorf("no hidden states for sample %d", i)
	}
	return out.Hidden[i][0], nil
}
