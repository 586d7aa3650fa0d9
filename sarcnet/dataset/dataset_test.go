package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeader(t *testing.T) {
	csv := "comment,label\n" +
		"oh great another meeting,1\n" +
		"see you tomorrow,0\n"
	c, err := ReadCSV(strings.NewReader(csv), "comment", "label")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "oh great another meeting", c.Texts[0])
	assert.Equal(t, []int{1, 0}, c.Labels)
}

func TestReadCSVHeaderless(t *testing.T) {
	csv := "what a fantastic idea,1\nthanks for the help,0\n"
	c, err := ReadCSV(strings.NewReader(csv), "comment", "label")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "what a fantastic idea", c.Texts[0])
}

func TestReadCSVColumnOrder(t *testing.T) {
	csv := "label,comment\n1,sure that will definitely work\n"
	c, err := ReadCSV(strings.NewReader(csv), "comment", "label")
	require.NoError(t, err)
	assert.Equal(t, "sure that will definitely work", c.Texts[0])
	assert.Equal(t, 1, c.Labels[0])
}

func TestReadCSVBadLabel(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("comment,label\nhello,2\n"), "comment", "label")
	assert.ErrorIs(t, err, ErrBadLabel)

	_, err = ReadCSV(strings.NewReader("comment,label\nhello,maybe\n"), "comment", "label")
	assert.ErrorIs(t, err, ErrBadLabel)
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "comment", "label")
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = ReadCSV(strings.NewReader("comment,label\n"), "comment", "label")
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}
