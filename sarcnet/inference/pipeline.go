package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
)

// Categories reported alongside the binary label.
const (
	CategorySarcastic    = "sarcastic"
	CategoryNotSarcastic = "not sarcastic"
)

var ErrEmptyText = errors.New("text is empty")

// Pipeline reproduces the exact training-time transformation for one input:
// tokenize with each branch's own tokenizer at the training sequence length,
// encode with the frozen adapters, fuse in branch order, classify. All of
// that consistency is carried by the Extractor, which can only come from a
// completed run or its fingerprint-checked artifacts.
type Pipeline struct {
	extractor *model.Extractor
	clf       *model.MLPClassifier
}

// New assembles a pipeline from a frozen extractor and a fitted classifier.
func New(extractor *model.Extractor, clf *model.MLPClassifier) *Pipeline {
	return &Pipeline{extractor: extractor, clf: clf}
}

// FromArtifacts rebuilds a serving pipeline from persisted weights. Both
// artifacts must carry the live pipeline spec's fingerprint; a mismatch is
// model.ErrStaleWeights.
func FromArtifacts(spec config.PipelineSpec, a, b *encoder.Branch,
	weights model.WeightsSnapshot, clf model.ClassifierSnapshot, extractBatch int,
) (*Pipeline, error) {
	extractor, err := model.ExtractorFromSnapshot(spec, a, b, weights, extractBatch)
	if err != nil {
		return nil, err
	}
	if clf.Fingerprint != spec.Fingerprint() {
		return nil, fmt.Errorf("%w: classifier fingerprint %.12s vs pipeline %.12s",
			model.ErrStaleWeights, clf.Fingerprint, spec.Fingerprint())
	}
	return &Pipeline{extractor: extractor, clf: model.ClassifierFromSnapshot(clf)}, nil
}

// Predict classifies one raw text. Oversized input is truncated by the
// tokenizers per their fixed-length contract, never rejected.
func (p *Pipeline) Predict(ctx context.Context, text string) (int, string, error) {
	if text == "" {
		return 0, "", ErrEmptyText
	}
	joint, err := p.extractor.EmbedText(ctx, text)
	if err != nil {
		return 0, "", fmt.Errorf("embed: %w", err)
	}
	label, err := p.clf.Predict(joint)
	if err != nil {
		return 0, "", fmt.Errorf("classify: %w", err)
	}
	category := CategoryNotSarcastic
	if label == 1 {
		category = CategorySarcastic
	}
	return label, category, nil
}
