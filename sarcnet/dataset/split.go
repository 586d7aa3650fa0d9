package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring"

	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

// Tokenized holds the five parallel arrays for one partition: ids and masks
// for each encoder branch plus labels. Every operation that reorders rows must
// reorder all five together or sample identity breaks.
type Tokenized struct {
	Texts  []string
	IDsA   [][]int64
	MaskA  [][]int64
	IDsB   [][]int64
	MaskB  [][]int64
	Labels []int
}

// Len is the number of samples in the partition.
func (t *Tokenized) Len() int { return len(t.Labels) }

// Row returns the parallel arrays of a single sample.
func (t *Tokenized) Row(i int) (idsA, maskA, idsB, maskB []int64, label int) {
	return t.IDsA[i], t.MaskA[i], t.IDsB[i], t.MaskB[i], t.Labels[i]
}

// Tokenize runs the corpus through both branch tokenizers. Both must be
// configured with the same max sequence length for a run.
func Tokenize(c *Corpus, tokA, tokB tokenize.Tokenizer) (*Tokenized, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	if tokA.MaxSeqLen() != tokB.MaxSeqLen() {
		return nil, fmt.Errorf("branch tokenizers disagree on max length: %d vs %d",
			tokA.MaxSeqLen(), tokB.MaxSeqLen())
	}
	idsA, maskA, err := tokA.Tokenize(c.Texts)
	if err != nil {
		return nil, fmt.Errorf("branch A tokenize: %w", err)
	}
	idsB, maskB, err := tokB.Tokenize(c.Texts)
	if err != nil {
		return nil, fmt.Errorf("branch B tokenize: %w", err)
	}
	return &Tokenized{
		Texts:  c.Texts,
		IDsA:   idsA,
		MaskA:  maskA,
		IDsB:   idsB,
		MaskB:  maskB,
		Labels: c.Labels,
	}, nil
}

// Split is a disjoint train/test partition. The original row indices behind
// each partition are kept as bitmaps so disjointness is checkable after the
// fact.
type Split struct {
	Train, Test       *Tokenized
	TrainIdx, TestIdx *roaring.Bitmap
}

var ErrOverlappingSplit = errors.New("train and test partitions overlap")

// SplitTokenized applies one seeded permutation to all five parallel arrays
// and cuts off the last testFraction of rows as the test partition.
func SplitTokenized(t *Tokenized, testFraction float64, seed int64) (*Split, error) {
	n := t.Len()
	if n == 0 {
		return nil, ErrEmptyCorpus
	}
	if testFraction < 0 || testFraction >= 1 {
		return nil, fmt.Errorf("test fraction %v out of range [0,1)", testFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n) * testFraction)
	nTrain := n - nTest

	trainIdx := roaring.New()
	testIdx := roaring.New()
	train := newTokenized(nTrain)
	test := newTokenized(nTest)
	for i, orig := range perm {
		if i < nTrain {
			train.appendFrom(t, orig)
			trainIdx.Add(uint32(orig))
		} else {
			test.appendFrom(t, orig)
			testIdx.Add(uint32(orig))
		}
	}

	if trainIdx.Intersects(testIdx) {
		return nil, ErrOverlappingSplit
	}
	return &Split{Train: train, Test: test, TrainIdx: trainIdx, TestIdx: testIdx}, nil
}

func newTokenized(capacity int) *Tokenized {
	return &Tokenized{
		Texts:  make([]string, 0, capacity),
		IDsA:   make([][]int64, 0, capacity),
		MaskA:  make([][]int64, 0, capacity),
		IDsB:   make([][]int64, 0, capacity),
		MaskB:  make([][]int64, 0, capacity),
		Labels: make([]int, 0, capacity),
	}
}

// appendFrom copies row i of src; all five arrays move together.
func (t *Tokenized) appendFrom(src *Tokenized, i int) {
	t.Texts = append(t.Texts, src.Texts[i])
	t.IDsA = append(t.IDsA, src.IDsA[i])
	t.MaskA = append(t.MaskA, src.MaskA[i])
	t.IDsB = append(t.IDsB, src.IDsB[i])
	t.MaskB = append(t.MaskB, src.MaskB[i])
	t.Labels = append(t.Labels, src.Labels[i])
}

// Slice returns a view of rows [from, to) sharing backing arrays.
func (t *Tokenized) Slice(from, to int) *Tokenized {
	return &Tokenized{
		Texts:  t.Texts[from:to],
		IDsA:   t.IDsA[from:to],
		MaskA:  t.MaskA[from:to],
		IDsB:   t.IDsB[from:to],
		MaskB:  t.MaskB[from:to],
		Labels: t.Labels[from:to],
	}
}
