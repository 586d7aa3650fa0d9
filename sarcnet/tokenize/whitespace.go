package tokenize

import (
	"hash/fnv"
	"strings"
)

const (
	padID = 0
	clsID = 101
	sepID = 102
	// hashed token ids live above the reserved range
	hashVocabBase = 1000
	hashVocabSize = 30000
)

// Whitespace is a vocabulary-free tokenizer for development and tests. Tokens
// are lowercased whitespace fields hashed into a synthetic id range, framed by
// CLS/SEP like the real tokenizers so downstream shapes match.
type Whitespace struct {
	maxSeqLen int
}

func NewWhitespace(maxSeq int) *Whitespace {
	// every row carries CLS and SEP, so anything shorter cannot hold a sequence
	if maxSeq < 2 {
		maxSeq = 2
	}
	return &Whitespace{maxSeqLen: maxSeq}
}

func (w *Whitespace) MaxSeqLen() int { return w.maxSeqLen }

func (w *Whitespace) Tokenize(texts []string) ([][]int64, [][]int64, error) {
	ids := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	for i, t := range texts {
		tokens := strings.Fields(strings.ToLower(t))
		seq := make([]int64, 0, w.maxSeqLen)
		mask := make([]int64, 0, w.maxSeqLen)
		seq = append(seq, clsID)
		mask = append(mask, 1)
		for _, tok := range tokens {
			// leave room for SEP
			if len(seq) >= w.maxSeqLen-1 {
				break
			}
			seq = append(seq, hashID(tok))
			mask = append(mask, 1)
		}
		seq = append(seq, sepID)
		mask = append(mask, 1)
		// pad
		for len(seq) < w.maxSeqLen {
			seq = append(seq, padID)
			mask = append(mask, 0)
		}
		ids[i] = seq
		masks[i] = mask
	}
	return ids, masks, nil
}

func hashID(tok string) int64 {
	h := fnv.New32a()
	h.Write([]byte(tok))
	return hashVocabBase + int64(h.Sum32()%hashVocabSize)
}
