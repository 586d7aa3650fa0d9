package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Corpus is the raw labelled dataset: one comment and one binary label per
// row. Row order is sample identity until SplitTokenized permutes everything
// together.
type Corpus struct {
	Texts  []string
	Labels []int
}

var (
	ErrEmptyCorpus = errors.New("corpus has no rows")
	ErrBadLabel    = errors.New("label is not binary")
)

// LoadCSV reads a labelled corpus from a CSV file. When the first row names
// the configured columns it is treated as a header; otherwise column 0 is the
// text and column 1 the label.
func LoadCSV(path, textColumn, labelColumn string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, textColumn, labelColumn)
}

// ReadCSV parses corpus rows from r. Split out from LoadCSV for tests.
func ReadCSV(r io.Reader, textColumn, labelColumn string) (*Corpus, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	first, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyCorpus
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	textIdx, labelIdx := 0, 1
	header := false
	for i, name := range first {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case strings.ToLower(textColumn):
			textIdx = i
			header = true
		case strings.ToLower(labelColumn):
			labelIdx = i
			header = true
		}
	}

	c := &Corpus{}
	appendRow := func(rec []string) error {
		if labelIdx >= len(rec) || textIdx >= len(rec) {
			return fmt.Errorf("row %d has %d fields, need text at %d and label at %d",
				len(c.Texts), len(rec), textIdx, labelIdx)
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[labelIdx]))
		if err != nil {
			return fmt.Errorf("row %d: %w: %q", len(c.Texts), ErrBadLabel, rec[labelIdx])
		}
		if label != 0 && label != 1 {
			return fmt.Errorf("row %d: %w: %d", len(c.Texts), ErrBadLabel, label)
		}
		c.Texts = append(c.Texts, rec[textIdx])
		c.Labels = append(c.Labels, label)
		return nil
	}

	if !header {
		if err := appendRow(first); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		if err := appendRow(rec); err != nil {
			return nil, err
		}
	}
	if len(c.Texts) == 0 {
		return nil, ErrEmptyCorpus
	}
	return c, nil
}

// Len is the number of samples.
func (c *Corpus) Len() int { return len(c.Texts) }
