package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/tapon22bce/sarcnet/sarcnet/nn"
)

// ErrStaleWeights means persisted weights were produced under a different
// pipeline contract (sequence length, tokenizer or encoder identity, branch
// order). Nothing at predict time would catch this, so it is checked at load.
var ErrStaleWeights = errors.New("stale weights: artifact does not match pipeline spec")

// WeightsSnapshot is the stage-1 artifact: branch projections plus head,
// tagged with the pipeline fingerprint.
type WeightsSnapshot struct {
	Fingerprint string
	ProjA       nn.LayerSnapshot
	ProjB       nn.LayerSnapshot
	Head1       nn.LayerSnapshot
	Head2       nn.LayerSnapshot
	HeadOut     nn.LayerSnapshot
}

// ClassifierSnapshot is the stage-2 artifact.
type ClassifierSnapshot struct {
	Fingerprint string
	InWidth     int
	H1          nn.LayerSnapshot
	H2          nn.LayerSnapshot
	Out         nn.LayerSnapshot
	Converged   bool
}

// EncodeWeights gob-encodes the stage-1 artifact.
func EncodeWeights(s WeightsSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode weights: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWeights reverses EncodeWeights.
func DecodeWeights(data []byte) (WeightsSnapshot, error) {
	var s WeightsSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return WeightsSnapshot{}, fmt.Errorf("decode weights: %w", err)
	}
	return s, nil
}

// EncodeClassifier gob-encodes the stage-2 artifact.
func EncodeClassifier(s ClassifierSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode classifier: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeClassifier reverses EncodeClassifier.
func DecodeClassifier(data []byte) (ClassifierSnapshot, error) {
	var s ClassifierSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return ClassifierSnapshot{}, fmt.Errorf("decode classifier: %w", err)
	}
	return s, nil
}
