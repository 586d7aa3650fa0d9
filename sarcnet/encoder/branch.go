package encoder

import (
	"context"
	"fmt"

	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

// Branch bundles one encoder family: its tokenizer, its frozen base encoder
// and the representation strategy that turns raw outputs into one vector per
// sample.
type Branch struct {
	Name string
	Tok  tokenize.Tokenizer
	Enc  Encoder
	Rep  Representation
}

// NewBranch wires a branch from its parts. The representation must match the
// family: pooled for branch A, first-token for branch B.
func NewBranch(name string, tok tokenize.Tokenizer, enc Encoder, rep Representation) *Branch {
	return &Branch{Name: name, Tok: tok, Enc: enc, Rep: rep}
}

// Width is the branch's output vector width.
func (b *Branch) Width() int { return b.Enc.Width() }

// EncodeTokens runs pre-tokenized inputs through the base encoder and extracts
// one representation vector per sample.
func (b *Branch) EncodeTokens(ctx context.Context, ids, mask [][]int64) ([][]float32, error) {
	if err := checkBatchShape(ids, mask, b.Tok.MaxSeqLen()); err != nil {
		return nil, fmt.Errorf("branch %s: %w", b.Name, err)
	}
	out, err := b.Enc.Forward(ctx, ids, mask)
	if err != nil {
		return nil, fmt.Errorf("branch %s: %w", b.Name, err)
	}
	vecs := make([][]float32, len(ids))
	for i := range ids {
		vec, err := b.Rep.Extract(out, i)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", b.Name, err)
		}
		if len(vec) != b.Enc.Width() {
			return nil, fmt.Errorf("branch %s: %w: representation width %d, want %d",
				b.Name, ErrShapeMismatch, len(vec), b.Enc.Width())
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Encode tokenizes raw text and encodes it in one step.
func (b *Branch) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	ids, mask, err := b.Tok.Tokenize(texts)
	if err != nil {
		return nil, fmt.Errorf("branch %s: tokenize: %w", b.Name, err)
	}
	return b.EncodeTokens(ctx, ids, mask)
}
