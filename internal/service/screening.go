package service

import (
	"errors"
	"fmt"

	"github.com/mindcare/internal/model"
)

var ErrInvalidAnswers = errors.New("invalid answers")

// instrumentSpec describes one self-administered questionnaire: item count,
// per-item answer range and the severity cut-offs.
type instrumentSpec struct {
	Items     int
	MaxAnswer int
	Bands     []severityBand
}

type severityBand struct {
	UpTo     int
	Severity string
}

var instrumentSpecs = map[model.Instrument]instrumentSpec{
	model.InstrumentPHQ9: {
		Items: 9, MaxAnswer: 3,
		Bands: []severityBand{
			{4, "minimal"}, {9, "mild"}, {14, "moderate"}, {19, "moderately severe"}, {27, "severe"},
		},
	},
	model.InstrumentGAD7: {
		Items: 7, MaxAnswer: 3,
		Bands: []severityBand{
			{4, "minimal"}, {9, "mild"}, {14, "moderate"}, {21, "severe"},
		},
	},
	model.InstrumentGDS15: {
		Items: 15, MaxAnswer: 1,
		Bands: []severityBand{
			{4, "normal"}, {8, "mild"}, {11, "moderate"}, {15, "severe"},
		},
	},
	model.InstrumentEPDS: {
		Items: 10, MaxAnswer: 3,
		Bands: []severityBand{
			{9, "low"}, {12, "possible"}, {30, "likely"},
		},
	},
}

// Instruments returns the supported instrument codes.
func Instruments() []model.Instrument {
	return []model.Instrument{
		model.InstrumentPHQ9, model.InstrumentGAD7, model.InstrumentGDS15, model.InstrumentEPDS,
	}
}

// ScoreScreening validates the answer vector for the instrument and computes
// the total score and severity band.
func ScoreScreening(instrument model.Instrument, answers []int) (score int, severity string, err error) {
	spec, ok := instrumentSpecs[instrument]
	if !ok {
		return 0, "", fmt.Errorf("%w: unknown instrument %q", ErrInvalidAnswers, instrument)
	}
	if len(answers) != spec.Items {
		return 0, "", fmt.Errorf("%w: %s expects %d answers, got %d", ErrInvalidAnswers, instrument, spec.Items, len(answers))
	}
	for i, a := range answers {
		if a < 0 || a > spec.MaxAnswer {
			return 0, "", fmt.Errorf("%w: answer %d out of range 0..%d at index %d", ErrInvalidAnswers, a, spec.MaxAnswer, i)
		}
		score += a
	}
	for _, band := range spec.Bands {
		if score <= band.UpTo {
			return score, band.Severity, nil
		}
	}
	// Unreachable: the last band covers the maximum score.
	return score, spec.Bands[len(spec.Bands)-1].Severity, nil
}
