package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BranchSpec identifies one encoder branch for a run: which model produced the
// vectors and how wide they are.
type BranchSpec struct {
	Provider string
	Model    string
	Width    int
}

// PipelineSpec is the immutable tokenization/encoding contract shared by
// training and inference. Both paths must be built from the same value;
// re-deriving it separately is how silent prediction skew happens.
type PipelineSpec struct {
	MaxSeqLen int
	BranchA   BranchSpec
	BranchB   BranchSpec
}

// SpecFromConfig derives the pipeline contract from loaded configuration.
func SpecFromConfig(cfg *Config) PipelineSpec {
	return PipelineSpec{
		MaxSeqLen: cfg.Training.MaxSeqLen,
		BranchA: BranchSpec{
			Provider: cfg.Branches.A.Provider,
			Model:    cfg.Branches.A.ModelPath,
			Width:    cfg.Branches.A.Width,
		},
		BranchB: BranchSpec{
			Provider: cfg.Branches.B.Provider,
			Model:    cfg.Branches.B.ModelPath,
			Width:    cfg.Branches.B.Width,
		},
	}
}

// JointWidth is the fused embedding width: branch A then branch B.
func (s PipelineSpec) JointWidth() int {
	return s.BranchA.Width + s.BranchB.Width
}

// Fingerprint returns a stable digest of everything that must match between
// the run that produced a set of weights and the process loading them.
func (s PipelineSpec) Fingerprint() string {
	canonical := fmt.Sprintf("seq=%d|a=%s:%s:%d|b=%s:%s:%d",
		s.MaxSeqLen,
		s.BranchA.Provider, s.BranchA.Model, s.BranchA.Width,
		s.BranchB.Provider, s.BranchB.Model, s.BranchB.Width,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
