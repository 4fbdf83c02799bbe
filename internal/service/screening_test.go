package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/internal/model"
)

func answersOf(n, value int) []int {
	a := make([]int, n)
	for i := range a {
		a[i] = value
	}
	return a
}

func TestScoreScreeningPHQ9Bands(t *testing.T) {
	cases := []struct {
		answers  []int
		score    int
		severity string
	}{
		{answersOf(9, 0), 0, "minimal"},
		{[]int{1, 1, 1, 1, 0, 0, 0, 0, 0}, 4, "minimal"},
		{[]int{1, 1, 1, 1, 1, 0, 0, 0, 0}, 5, "mild"},
		{[]int{1, 1, 1, 1, 1, 1, 1, 1, 1}, 9, "mild"},
		{[]int{2, 2, 2, 2, 2, 0, 0, 0, 0}, 10, "moderate"},
		{[]int{2, 2, 2, 2, 2, 2, 2, 1, 0}, 15, "moderately severe"},
		{[]int{3, 3, 3, 3, 3, 3, 2, 0, 0}, 20, "severe"},
		{answersOf(9, 3), 27, "severe"},
	}
	for _, c := range cases {
		score, severity, err := ScoreScreening(model.InstrumentPHQ9, c.answers)
		require.NoError(t, err)
		assert.Equal(t, c.score, score)
		assert.Equal(t, c.severity, severity, "score %d", score)
	}
}

func TestScoreScreeningGAD7Bands(t *testing.T) {
	cases := []struct {
		score    int
		severity string
	}{
		{0, "minimal"}, {4, "minimal"}, {5, "mild"}, {9, "mild"},
		{10, "moderate"}, {14, "moderate"}, {15, "severe"}, {21, "severe"},
	}
	for _, c := range cases {
		answers := make([]int, 7)
		left := c.score
		for i := range answers {
			v := left
			if v > 3 {
				v = 3
			}
			answers[i] = v
			left -= v
		}
		score, severity, err := ScoreScreening(model.InstrumentGAD7, answers)
		require.NoError(t, err)
		assert.Equal(t, c.score, score)
		assert.Equal(t, c.severity, severity, "score %d", score)
	}
}

func TestScoreScreeningGDS15(t *testing.T) {
	score, severity, err := ScoreScreening(model.InstrumentGDS15, answersOf(15, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.Equal(t, "normal", severity)

	// GDS-15 answers are binary.
	_, _, err = ScoreScreening(model.InstrumentGDS15, answersOf(15, 2))
	assert.ErrorIs(t, err, ErrInvalidAnswers)

	score, severity, err = ScoreScreening(model.InstrumentGDS15, answersOf(15, 1))
	require.NoError(t, err)
	assert.Equal(t, 15, score)
	assert.Equal(t, "severe", severity)
}

func TestScoreScreeningEPDSBands(t *testing.T) {
	_, severity, err := ScoreScreening(model.InstrumentEPDS, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, "low", severity)

	_, severity, err = ScoreScreening(model.InstrumentEPDS, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, "possible", severity)

	_, severity, err = ScoreScreening(model.InstrumentEPDS, []int{2, 2, 2, 2, 2, 1, 1, 1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "likely", severity)
}

func TestScoreScreeningRejectsBadInput(t *testing.T) {
	_, _, err := ScoreScreening("mmpi", answersOf(9, 1))
	assert.ErrorIs(t, err, ErrInvalidAnswers)

	_, _, err = ScoreScreening(model.InstrumentPHQ9, answersOf(8, 1))
	assert.ErrorIs(t, err, ErrInvalidAnswers)

	_, _, err = ScoreScreening(model.InstrumentPHQ9, append(answersOf(8, 1), 4))
	assert.ErrorIs(t, err, ErrInvalidAnswers)

	_, _, err = ScoreScreening(model.InstrumentPHQ9, append(answersOf(8, 1), -1))
	assert.ErrorIs(t, err, ErrInvalidAnswers)
}

func TestInstruments(t *testing.T) {
	list := Instruments()
	assert.Len(t, list, 4)
	for _, inst := range list {
		_, ok := instrumentSpecs[inst]
		assert.True(t, ok, "missing spec for %s", inst)
	}
}
