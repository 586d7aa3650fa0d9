package main

import (
	"fmt"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

// buildBranches assembles both encoder branches from config. Branch A is the
// pooled-output family (BERT-style WordPiece vocab), branch B the first-token
// family (HF tokenizer.json). The hash provider pairs with the whitespace
// tokenizer for dev runs without model files.
func buildBranches(cfg *config.Config) (a, b *encoder.Branch, err error) {
	maxSeq := cfg.Training.MaxSeqLen

	tokA, err := branchTokenizer(cfg.Branches.A, "wordpiece", maxSeq)
	if err != nil {
		return nil, nil, fmt.Errorf("branch A tokenizer: %w", err)
	}
	encA, err := encoder.New(cfg.Branches.A.Provider, cfg.Branches.A.ModelPath, cfg.Branches.A.Width)
	if err != nil {
		return nil, nil, fmt.Errorf("branch A encoder: %w", err)
	}

	tokB, err := branchTokenizer(cfg.Branches.B, "hf", maxSeq)
	if err != nil {
		return nil, nil, fmt.Errorf("branch B tokenizer: %w", err)
	}
	encB, err := encoder.New(cfg.Branches.B.Provider, cfg.Branches.B.ModelPath, cfg.Branches.B.Width)
	if err != nil {
		return nil, nil, fmt.Errorf("branch B encoder: %w", err)
	}

	a = encoder.NewBranch("A", tokA, encA, encoder.PooledRepresentation{})
	b = encoder.NewBranch("B", tokB, encB, encoder.FirstTokenRepresentation{})
	return a, b, nil
}

func branchTokenizer(bc config.BranchConfig, realProvider string, maxSeq int) (tokenize.Tokenizer, error) {
	if bc.Provider == "onnx" {
		return tokenize.New(realProvider, bc.TokenizerPath, maxSeq)
	}
	return tokenize.New("whitespace", "", maxSeq)
}
