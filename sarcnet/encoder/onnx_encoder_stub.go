//go:build !onnx
// +build !onnx

package encoder

import "fmt"

// newONNXEncoder is a stub used when built without the "onnx" build tag.
func newONNXEncoder(modelPath string, width int) (Encoder, error) {
	return nil, fmt.Errorf("onnx encoder not available: build with -tags onnx and provide a supported model")
}
