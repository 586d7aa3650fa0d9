package encoder

import "fmt"

// Fuse concatenates the two branch vectors into one joint embedding, branch A
// first. Order is part of the trained feature space: swapping branches between
// training and inference does not fail, it just predicts garbage, so every
// caller goes through here.
func Fuse(vecA, vecB []float32, widthA, widthB int) ([]float32, error) {
	if len(vecA) != widthA {
		return nil, fmt.Errorf("%w: branch A vector has width %d, want %d", ErrShapeMismatch, len(vecA), widthA)
	}
	if len(vecB) != widthB {
		return nil, fmt.Errorf("%w: branch B vector has width %d, want %d", ErrShapeMismatch, len(vecB), widthB)
	}
	joint := make([]float32, 0, widthA+widthB)
	joint = append(joint, vecA...)
	joint = append(joint, vecB...)
	return joint, nil
}
