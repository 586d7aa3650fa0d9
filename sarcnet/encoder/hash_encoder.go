package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// hashEncoder is a deterministic stand-in encoder: each token id maps to a
// fixed pseudo-random vector, the pooled output is the masked mean. It has no
// semantics but exercises every shape and ordering contract of the real
// pipeline, which is what dev and test runs need.
type hashEncoder struct{ width int }

func NewHashEncoder(width int) Encoder {
	if width <= 0 {
		width = 64
	}
	return &hashEncoder{width: width}
}

func (h *hashEncoder) Width() int { return h.width }

func (h *hashEncoder) Forward(ctx context.Context, ids, mask [][]int64) (*Outputs, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	out := &Outputs{
		Pooled: make([][]float32, len(ids)),
		Hidden: make([][][]float32, len(ids)),
	}
	for i := range ids {
		seq := make([][]float32, len(ids[i]))
		pooled := make([]float32, h.width)
		var count float32
		for j, id := range ids[i] {
			vec := h.tokenVector(id)
			seq[j] = vec
			if j < len(mask[i]) && mask[i][j] == 1 {
				for k := range pooled {
					pooled[k] += vec[k]
				}
				count++
			}
		}
		if count > 0 {
			for k := range pooled {
				pooled[k] /= count
			}
		}
		out.Hidden[i] = seq
		out.Pooled[i] = pooled
	}
	return out, nil
}

func (h *hashEncoder) tokenVector(id int64) []float32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	sum := sha256.Sum256(buf[:])
	vec := make([]float32, h.width)
	// repeat hash bytes to fill dims
	for j := 0; j < h.width; j++ {
		b := sum[j%len(sum)]
		vec[j] = (float32(int(b)) - 128.0) / 128.0
	}
	return vec
}
