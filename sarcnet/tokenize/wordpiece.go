package tokenize

import (
	"bufio"
	"os"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style). This is the
// branch-A tokenizer family.
type SugarWordPiece struct {
	t         *tk.Tokenizer
	maxSeqLen int
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer
func NewSugarWordPiece(vocabPath string, maxSeq int) (*SugarWordPiece, error) {
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, err
	}

	t := tk.NewTokenizer(wp)

	// Basic normalizer and pre-tokenizer similar to BERT
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	// Discover special token ids from the vocab file; fall back to the
	// canonical BERT positions.
	clsID, sepID := 101, 102
	if f, err := os.Open(vocabPath); err == nil {
		scanner := bufio.NewScanner(f)
		idx := 0
		for scanner.Scan() {
			switch strings.TrimSpace(scanner.Text()) {
			case "[CLS]":
				clsID = idx
			case "[SEP]":
				sepID = idx
			}
			idx++
		}
		f.Close()
	}

	template := processor.NewBertProcessing(
		processor.PostToken{Value: "[SEP]", Id: sepID},
		processor.PostToken{Value: "[CLS]", Id: clsID},
	)
	t.WithPostProcessor(template)
	t.WithTruncation(&tk.TruncationParams{MaxLength: maxSeq})
	// PaddingParams doesn't support MaxLength in current sugarme version;
	// fixed-length padding happens in Tokenize.
	t.WithPadding(&tk.PaddingParams{})

	return &SugarWordPiece{t: t, maxSeqLen: maxSeq}, nil
}

func (s *SugarWordPiece) MaxSeqLen() int { return s.maxSeqLen }

func (s *SugarWordPiece) Tokenize(texts []string) ([][]int64, [][]int64, error) {
	ids := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, txt := range texts {
		enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(txt)), true)
		if err != nil {
			return nil, nil, err
		}
		uids := enc.GetIds()
		umask := enc.GetAttentionMask()

		// enforce fixed-length output (pad/truncate to maxSeqLen)
		rowIDs := make([]int64, s.maxSeqLen)
		rowMask := make([]int64, s.maxSeqLen)
		n := len(uids)
		if n > s.maxSeqLen {
			n = s.maxSeqLen
		}
		for j := 0; j < n; j++ {
			rowIDs[j] = int64(uids[j])
			if j < len(umask) {
				rowMask[j] = int64(umask[j])
			} else {
				rowMask[j] = 1
			}
		}
		ids[i] = rowIDs
		masks[i] = rowMask
	}
	return ids, masks, nil
}
