package tokenize

import (
	"fmt"
	"os"

	tokenizers "github.com/amikos-tech/pure-tokenizers"
)

// HFTokenizer wraps a HuggingFace tokenizer.json via pure-tokenizers. This is
// the branch-B tokenizer family, with its own vocabulary and merge rules.
type HFTokenizer struct {
	t         *tokenizers.Tokenizer
	maxSeqLen int
}

// NewHFTokenizer loads tokenizer.json and configures fixed-length truncation
// and padding so every encoding comes back exactly maxSeq long.
func NewHFTokenizer(tokenizerPath string, maxSeq int) (*HFTokenizer, error) {
	if _, err := os.Stat(tokenizerPath); err != nil {
		return nil, fmt.Errorf("tokenizer path %q is not usable: %w", tokenizerPath, err)
	}
	t, err := tokenizers.FromFile(tokenizerPath,
		tokenizers.WithTruncation(
			uintptr(maxSeq),
			tokenizers.TruncationDirectionRight,
			tokenizers.TruncationStrategyLongestFirst,
		),
		tokenizers.WithPadding(true, tokenizers.PaddingStrategy{
			Tag:       tokenizers.PaddingStrategyFixed,
			FixedSize: uintptr(maxSeq),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer.json: %w", err)
	}
	return &HFTokenizer{t: t, maxSeqLen: maxSeq}, nil
}

func (h *HFTokenizer) MaxSeqLen() int { return h.maxSeqLen }

func (h *HFTokenizer) Tokenize(texts []string) ([][]int64, [][]int64, error) {
	ids := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, txt := range texts {
		enc, err := h.t.Encode(txt,
			tokenizers.WithAddSpecialTokens(),
			tokenizers.WithReturnAttentionMask(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to tokenize document %d: %w", i, err)
		}
		if enc == nil {
			return nil, nil, fmt.Errorf("failed to tokenize document %d: empty tokenizer result", i)
		}

		rowIDs := make([]int64, h.maxSeqLen)
		rowMask := make([]int64, h.maxSeqLen)
		fillUint32AsInt64(rowIDs, enc.IDs)
		if len(enc.AttentionMask) > 0 {
			fillUint32AsInt64(rowMask, enc.AttentionMask)
		} else {
			for j, id := range rowIDs {
				if id != 0 {
					rowMask[j] = 1
				}
			}
		}
		ids[i] = rowIDs
		masks[i] = rowMask
	}
	return ids, masks, nil
}

func fillUint32AsInt64(dst []int64, src []uint32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] = int64(src[i])
	}
}
