package tokenize

import (
	"errors"
	"fmt"
)

// Tokenizer converts raw text to model-ready token IDs and attention masks.
// Every row returned is exactly maxSeqLen long; the mask marks non-padding
// positions with 1.
type Tokenizer interface {
	Tokenize(texts []string) (inputIDs [][]int64, attentionMasks [][]int64, err error)
	MaxSeqLen() int
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = errors.New("unsupported tokenizer configuration")

// New builds a tokenizer for a branch by provider name. "wordpiece" expects a
// BERT vocab.txt, "hf" a HuggingFace tokenizer.json, and "whitespace" needs no
// files (dev/test).
func New(provider, path string, maxSeq int) (Tokenizer, error) {
	switch provider {
	case "wordpiece":
		return NewSugarWordPiece(path, maxSeq)
	case "hf":
		return NewHFTokenizer(path, maxSeq)
	case "whitespace", "hash", "", "dev":
		return NewWhitespace(maxSeq), nil
	default:
		return nil, fmt.Errorf("%w: provider %q", ErrUnsupported, provider)
	}
}
