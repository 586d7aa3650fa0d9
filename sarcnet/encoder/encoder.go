package encoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Outputs carries both whole-sequence representations an encoder can expose:
// a pooled vector per sample and the per-token hidden states. Either may be
// nil depending on what the underlying model emits; the branch's
// Representation decides which one it needs.
type Outputs struct {
	Pooled [][]float32   // [batch][width]
	Hidden [][][]float32 // [batch][seq][width]
}

// Encoder produces fixed-width representations from token ids and attention
// masks. Implementations are read-only: all trainable state lives in the
// branch projection, not here.
type Encoder interface {
	Width() int
	Forward(ctx context.Context, ids, mask [][]int64) (*Outputs, error)
}

// ErrShapeMismatch flags token/mask rows whose length disagrees with the
// configured max sequence length, or fusion inputs of the wrong width.
var ErrShapeMismatch = errors.New("input shape mismatch")

// ErrUnsupported indicates the encoder provider name is not recognized.
var ErrUnsupported = errors.New("unsupported encoder provider")

// New selects an encoder by provider name. "hash" (also the empty default)
// is the deterministic dev encoder; "onnx" loads a model file. A typo'd
// provider is an error, not a silent hash fallback: embeddings from the wrong
// encoder would train a worthless model with no signal.
func New(provider, modelPath string, width int) (Encoder, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	switch {
	case name == "hash" || name == "" || name == "dev":
		return NewHashEncoder(width), nil
	case name == "onnx" || strings.HasPrefix(name, "onnx"):
		return newONNXEncoder(modelPath, width)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, provider)
	}
}

func checkBatchShape(ids, mask [][]int64, maxSeq int) error {
	if len(ids) != len(mask) {
		return fmt.Errorf("%w: %d id rows vs %d mask rows", ErrShapeMismatch, len(ids), len(mask))
	}
	for i := range ids {
		if len(ids[i]) != maxSeq || len(mask[i]) != maxSeq {
			return fmt.Errorf("%w: row %d has ids=%d mask=%d, want %d",
				ErrShapeMismatch, i, len(ids[i]), len(mask[i]), maxSeq)
		}
	}
	return nil
}
